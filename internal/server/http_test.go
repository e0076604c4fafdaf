package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/clock"
	"github.com/alfredjeanlab/chainreg/internal/content"
	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/notify"
	"github.com/alfredjeanlab/chainreg/internal/reconcile"
	"github.com/alfredjeanlab/chainreg/internal/store"
	"github.com/alfredjeanlab/chainreg/internal/txbuild"
	"github.com/alfredjeanlab/chainreg/internal/workflow"
)

const testOwner = "ST1OWNER"

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeSnapshots struct {
	snap      *reconcile.Snapshot
	next      *reconcile.Snapshot
	err       error
	refreshes int
}

func (f *fakeSnapshots) Snapshot() *reconcile.Snapshot { return f.snap }

func (f *fakeSnapshots) LastError() error { return f.err }

func (f *fakeSnapshots) Refresh(context.Context) (*reconcile.Snapshot, error) {
	f.refreshes++
	if f.err != nil {
		return nil, f.err
	}
	if f.next != nil {
		f.snap = f.next
	}
	return f.snap, nil
}

type fakeTickets map[string][]model.TicketView

func (f fakeTickets) ListTickets(_ context.Context, owner string) ([]model.TicketView, error) {
	if owner == "ST1BROKEN" {
		return nil, errors.New("node unreachable")
	}
	return f[owner], nil
}

type fakeUploader struct{ n int }

func (f *fakeUploader) Upload(context.Context, []content.Blob, map[string]any) (string, error) {
	f.n++
	return fmt.Sprintf("bafy%d", f.n), nil
}

type fakeSubmitter struct {
	err error
}

func (f *fakeSubmitter) Submit(context.Context, *txbuild.CallDescriptor) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "0xabc", nil
}

type fakeEvents map[uint64]model.EventRecord

func (f fakeEvents) GetEvent(_ context.Context, id uint64) (model.EventRecord, error) {
	if e, ok := f[id]; ok {
		return e, nil
	}
	return model.EventRecord{}, model.ErrNotFound
}

type fixedHeight uint64

func (h fixedHeight) Current(context.Context) (uint64, bool) { return uint64(h), false }

func sampleSnapshot() *reconcile.Snapshot {
	return &reconcile.Snapshot{
		Assets: []model.AssetRecord{
			{ID: 0, Title: "Sunset", Category: "art", RegisteredAt: 10},
			{ID: 1, Title: "Beat", Category: "music", RegisteredAt: 20},
			{ID: 2, Title: "Dawn", Category: "art", RegisteredAt: 30},
		},
		Events: []model.EventRecord{
			{ID: 0, Title: "Past", Category: "music", EventBlock: 90, IsActive: true, Organizer: "ST1ORG"},
			{ID: 1, Title: "Gig", Category: "music", EventBlock: 500, IsActive: true, Organizer: "ST1ORG", MaxTickets: 1, SoldTickets: 1, TicketPriceMicro: 1_000_000},
			{ID: 2, Title: "Expo", Category: "art", EventBlock: 600, IsActive: true, Organizer: "ST2ORG"},
		},
		Tickets: []model.TicketView{
			{TicketRecord: model.TicketRecord{TicketID: 4, EventID: 1, Owner: testOwner, IsValid: true}},
		},
		Height:      100,
		RefreshedAt: epoch,
	}
}

type testEnv struct {
	srv       *Server
	handler   http.Handler
	snaps     *fakeSnapshots
	queue     *notify.Queue
	journal   *store.Memory
	submitter *fakeSubmitter
	clk       *clock.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clk := clock.NewFake(epoch)
	env := &testEnv{
		snaps:     &fakeSnapshots{snap: sampleSnapshot()},
		journal:   store.NewMemory(),
		submitter: &fakeSubmitter{},
		clk:       clk,
	}
	hub := NewHub()
	t.Cleanup(func() { hub.Close() })
	env.queue = notify.New(clk, 0, hub, quietLogger())
	deps := &workflow.Deps{
		Uploader:    &fakeUploader{},
		Builder:     txbuild.NewBuilder("ST1CONTRACT", "test-contract"),
		Submitter:   env.submitter,
		Events:      fakeEvents{1: sampleSnapshot().Events[1]},
		Heights:     fixedHeight(100),
		Notifier:    env.queue,
		Journal:     env.journal,
		Publisher:   hub,
		Clock:       clk,
		Logger:      quietLogger(),
		Sender:      testOwner,
		ExplorerURL: "https://explorer.example",
		Network:     "testnet",
	}
	env.srv = New(Options{
		Snapshots:       env.snaps,
		Tickets:         fakeTickets{"ST2OTHER": {{TicketRecord: model.TicketRecord{TicketID: 9, Owner: "ST2OTHER"}}}},
		Notifications:   env.queue,
		Workflows:       deps,
		Runs:            env.journal,
		Hub:             hub,
		Network:         "testnet",
		ContractAddress: "ST1CONTRACT",
		ContractName:    "test-contract",
		TicketOwner:     testOwner,
		Logger:          quietLogger(),
	})
	env.handler = env.srv.NewHTTPHandler("")
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.snaps.snap.HeightEstimated = true
	env.queue.Push(model.NotifyInfo, "hi", "there", "")

	rec := env.do(t, http.MethodGet, "/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	got := decode[StatusResponse](t, rec)
	if got.Contract != "ST1CONTRACT.test-contract" || got.Network != "testnet" {
		t.Errorf("identity = %q %q", got.Contract, got.Network)
	}
	if got.Assets != 3 || got.Events != 3 || got.Tickets != 1 || got.Notifications != 1 {
		t.Errorf("counts = %+v", got)
	}
	if got.Height != 100 || !got.HeightEstimated {
		t.Errorf("height = %d estimated=%v", got.Height, got.HeightEstimated)
	}
	if !got.WorkflowsReady {
		t.Error("workflows should be ready")
	}
	if env.snaps.refreshes != 0 {
		t.Error("status must not reconcile")
	}
}

func TestListAssets(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct {
		query string
		want  []string
	}{
		{"", []string{"Dawn", "Beat", "Sunset"}},
		{"?category=art", []string{"Dawn", "Sunset"}},
		{"?category=ART&sort=oldest", []string{"Sunset", "Dawn"}},
		{"?search=be&sort=title", []string{"Beat"}},
		{"?category=video", []string{}},
	} {
		rec := env.do(t, http.MethodGet, "/v1/assets"+tc.query, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: code %d", tc.query, rec.Code)
		}
		got := decode[struct {
			Assets []model.AssetRecord `json:"assets"`
		}](t, rec)
		titles := []string{}
		for _, a := range got.Assets {
			titles = append(titles, a.Title)
		}
		if strings.Join(titles, ",") != strings.Join(tc.want, ",") {
			t.Errorf("%s: got %v, want %v", tc.query, titles, tc.want)
		}
	}
}

func TestListAssets_BadSort(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/assets?sort=random", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListAssets_ReconcilesWhenEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.snaps.snap = nil
	env.snaps.next = sampleSnapshot()

	rec := env.do(t, http.MethodGet, "/v1/assets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	if env.snaps.refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1", env.snaps.refreshes)
	}
	env.do(t, http.MethodGet, "/v1/assets", nil)
	if env.snaps.refreshes != 1 {
		t.Fatalf("second read reconciled again")
	}
}

func TestListEvents(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct {
		query string
		want  []uint64
	}{
		{"", []uint64{0, 1, 2}},
		{"?upcoming=true", []uint64{1, 2}},
		{"?organizer=ST1ORG&upcoming=1", []uint64{1}},
		{"?category=art", []uint64{2}},
	} {
		rec := env.do(t, http.MethodGet, "/v1/events"+tc.query, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: code %d", tc.query, rec.Code)
		}
		got := decode[struct {
			Events []model.EventRecord `json:"events"`
			Height uint64              `json:"height"`
		}](t, rec)
		var ids []uint64
		for _, e := range got.Events {
			ids = append(ids, e.ID)
		}
		if fmt.Sprint(ids) != fmt.Sprint(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.query, ids, tc.want)
		}
		if got.Height != 100 {
			t.Errorf("height = %d", got.Height)
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/events?upcoming=maybe", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad upcoming, got %d", rec.Code)
	}
}

func TestListTickets(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []uint64
	}{
		{"DefaultOwnerFromSnapshot", "", http.StatusOK, []uint64{4}},
		{"SnapshotOwner", "?owner=" + testOwner, http.StatusOK, []uint64{4}},
		{"OtherOwnerLive", "?owner=ST2OTHER", http.StatusOK, []uint64{9}},
		{"UnknownOwner", "?owner=ST3NOBODY", http.StatusOK, nil},
		{"LiveFailure", "?owner=ST1BROKEN", http.StatusBadGateway, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/v1/tickets"+tc.query, nil)
			if rec.Code != tc.wantCode {
				t.Fatalf("code %d, want %d: %s", rec.Code, tc.wantCode, rec.Body.String())
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			got := decode[struct {
				Tickets []model.TicketView `json:"tickets"`
			}](t, rec)
			if got.Tickets == nil {
				t.Fatal("tickets must encode as an array")
			}
			var ids []uint64
			for _, tk := range got.Tickets {
				ids = append(ids, tk.TicketID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tc.wantIDs) {
				t.Errorf("got %v, want %v", ids, tc.wantIDs)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	next := sampleSnapshot()
	next.Height = 200
	env.snaps.next = next

	rec := env.do(t, http.MethodPost, "/v1/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	if got := decode[reconcile.Snapshot](t, rec); got.Height != 200 {
		t.Fatalf("height = %d", got.Height)
	}

	env.snaps.err = errors.New("count-ips: node unreachable")
	rec = env.do(t, http.MethodPost, "/v1/refresh", nil)
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "node unreachable") {
		t.Fatalf("failure = %d %s", rec.Code, rec.Body.String())
	}
}

func TestNotifications_ListAndDismiss(t *testing.T) {
	env := newTestEnv(t)
	n := env.queue.Push(model.NotifySuccess, "Done", "ok", "")

	rec := env.do(t, http.MethodGet, "/v1/notifications", nil)
	got := decode[struct {
		Notifications []model.Notification `json:"notifications"`
	}](t, rec)
	if len(got.Notifications) != 1 || got.Notifications[0].ID != n.ID {
		t.Fatalf("list = %+v", got.Notifications)
	}

	path := fmt.Sprintf("/v1/notifications/%d", n.ID)
	if rec := env.do(t, http.MethodDelete, path, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("dismiss = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, path, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second dismiss = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/v1/notifications/abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/notifications", nil)
	if !strings.Contains(rec.Body.String(), `"notifications":[]`) {
		t.Fatalf("empty list should be an array: %s", rec.Body.String())
	}
}

func TestRegisterWorkflow_Success(t *testing.T) {
	env := newTestEnv(t)
	in := workflow.RegistrationInput{
		Title:       "My First IP",
		Description: "A small test asset",
		Category:    "art",
		License:     "CC-BY",
		File:        &workflow.File{Name: "hello.txt", MediaType: "text/plain", Data: []byte("hello world!")},
	}
	rec := env.do(t, http.MethodPost, "/v1/workflows/register", in)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[workflow.Result](t, rec)
	if res.Outcome != model.OutcomeSuccess || res.TxID != "0xabc" || res.ContentID != "bafy2" {
		t.Fatalf("result = %+v", res)
	}
	if res.Notification.Kind != model.NotifySuccess {
		t.Errorf("notification = %+v", res.Notification)
	}

	rec = env.do(t, http.MethodGet, "/v1/runs", nil)
	runs := decode[struct {
		Runs []model.RunRecord `json:"runs"`
	}](t, rec)
	if len(runs.Runs) != 1 || runs.Runs[0].ID != res.RunID {
		t.Fatalf("journal = %+v", runs.Runs)
	}
}

func TestRegisterWorkflow_ValidationIs400(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/workflows/register", workflow.RegistrationInput{Category: "art"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code %d, want 400", rec.Code)
	}
	res := decode[workflow.Result](t, rec)
	if res.Outcome != model.OutcomeFailure || res.Stage != workflow.StateValidating {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Error, "title") {
		t.Errorf("error %q should name the missing field", res.Error)
	}
}

func TestPurchaseWorkflow_LedgerRejectionIs200(t *testing.T) {
	env := newTestEnv(t)
	env.submitter.err = &model.ContractError{Kind: model.ContractBroadcastRejected, Message: "transaction rejected (SoldOut)"}

	rec := env.do(t, http.MethodPost, "/v1/workflows/purchase", workflow.PurchaseInput{EventID: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d, want 200", rec.Code)
	}
	res := decode[workflow.Result](t, rec)
	if res.Outcome != model.OutcomeFailure || res.Stage != workflow.StateSubmitting {
		t.Fatalf("result = %+v", res)
	}
	if res.Error != "transaction rejected (SoldOut)" {
		t.Errorf("error = %q", res.Error)
	}
	notes := env.queue.List()
	if len(notes) != 1 || notes[0].Message != res.Error {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestPurchaseWorkflow_UnknownEventIs400(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/workflows/purchase", workflow.PurchaseInput{EventID: 42})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code %d, want 400", rec.Code)
	}
}

func TestCreateEventWorkflow(t *testing.T) {
	env := newTestEnv(t)
	in := workflow.EventInput{
		Title:            "Launch",
		Description:      "Release party",
		Location:         "Lisbon",
		Category:         "music",
		StartsAt:         epoch.Add(24 * time.Hour),
		TicketPriceMicro: 2_500_000,
		MaxTickets:       50,
		Image:            &workflow.File{Name: "poster.png", MediaType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	}
	rec := env.do(t, http.MethodPost, "/v1/workflows/events", in)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d: %s", rec.Code, rec.Body.String())
	}
	if res := decode[workflow.Result](t, rec); res.Outcome != model.OutcomeSuccess {
		t.Fatalf("result = %+v", res)
	}
}

func TestWorkflow_BadBody(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`{"event_id": "one"}`, `{"event_id": 1, "extra": true}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/workflows/purchase", strings.NewReader(body))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: code %d, want 400", body, rec.Code)
		}
	}
}

func TestWorkflow_DisabledWithoutSigner(t *testing.T) {
	srv := New(Options{Logger: quietLogger()})
	h := srv.NewHTTPHandler("")
	for _, path := range []string{"/v1/workflows/register", "/v1/workflows/events", "/v1/workflows/purchase"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: code %d, want 503", path, rec.Code)
		}
	}
	for _, path := range []string{"/v1/assets", "/v1/notifications", "/v1/runs"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: code %d, want 503", path, rec.Code)
		}
	}
}

func TestListRuns_Limit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := range 3 {
		_ = env.journal.RecordRun(ctx, &model.RunRecord{ID: fmt.Sprintf("wf-%d", i), StartedAt: epoch.Add(time.Duration(i) * time.Minute)})
	}
	rec := env.do(t, http.MethodGet, "/v1/runs?limit=2", nil)
	got := decode[struct {
		Runs []model.RunRecord `json:"runs"`
	}](t, rec)
	if len(got.Runs) != 2 || got.Runs[0].ID != "wf-2" {
		t.Fatalf("runs = %+v", got.Runs)
	}
	if rec := env.do(t, http.MethodGet, "/v1/runs?limit=-1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative limit = %d, want 400", rec.Code)
	}
}

func TestNewHTTPHandler_Auth(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.NewHTTPHandler("secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/assets", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("assets without token = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/assets", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("assets with token = %d", rec.Code)
	}
}
