package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/alfredjeanlab/chainreg/internal/clarity"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

// Kind is an indexed collection exposed by the contract.
type Kind string

const (
	KindAsset  Kind = "asset"
	KindEvent  Kind = "event"
	KindTicket Kind = "ticket"
)

// countFn and getFn name the contract's read-only functions per kind.
var (
	countFn = map[Kind]string{
		KindAsset: "get-ip-count",
		KindEvent: "get-event-count",
	}
	getFn = map[Kind]string{
		KindAsset:  "get-ip",
		KindEvent:  "get-event",
		KindTicket: "get-ticket",
	}
)

// Status tags the outcome of decoding one ledger response.
type Status int

const (
	StatusOK Status = iota
	StatusAbsent
	StatusMalformed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAbsent:
		return "absent"
	case StatusMalformed:
		return "malformed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Decoded is the tagged result of decoding one record.
type Decoded[T any] struct {
	Status Status
	Record T
	Err    *model.DecodeError // set when Malformed
}

// field types used in the record schemas
const (
	fASCII     = "ascii"
	fPrincipal = "principal"
	fUInt      = "uint"
	fBool      = "bool"
)

var recordFields = map[Kind]map[string]string{
	KindAsset: {
		"ipfs-hash":    fASCII,
		"title":        fASCII,
		"description":  fASCII,
		"license-type": fASCII,
		"owner":        fPrincipal,
		"file-hash":    fASCII,
		"filename":     fASCII,
		"category":     fASCII,
		"timestamp":    fUInt,
	},
	KindEvent: {
		"ipfs-hash":    fASCII,
		"title":        fASCII,
		"description":  fASCII,
		"location":     fASCII,
		"event-date":   fUInt,
		"ticket-price": fUInt,
		"max-tickets":  fUInt,
		"sold-tickets": fUInt,
		"organizer":    fPrincipal,
		"category":     fASCII,
		"timestamp":    fUInt,
		"is-active":    fBool,
	},
	KindTicket: {
		"ticket-id":     fUInt,
		"event-id":      fUInt,
		"owner":         fPrincipal,
		"purchase-time": fUInt,
		"is-valid":      fBool,
	},
}

var scalarDefs = map[string]any{
	fASCII: map[string]any{
		"type":     "object",
		"required": []string{"type", "value"},
		"properties": map[string]any{
			"type":  map[string]any{"enum": []string{"string-ascii", "string-utf8"}},
			"value": map[string]any{"type": "string"},
		},
	},
	fPrincipal: map[string]any{
		"type":     "object",
		"required": []string{"type", "value"},
		"properties": map[string]any{
			"type":  map[string]any{"const": "principal"},
			"value": map[string]any{"type": "string", "minLength": 1},
		},
	},
	fUInt: map[string]any{
		"type":     "object",
		"required": []string{"type", "value"},
		"properties": map[string]any{
			"type": map[string]any{"const": "uint"},
			"value": map[string]any{"anyOf": []any{
				map[string]any{"type": "string", "pattern": "^[0-9]{1,20}$"},
				map[string]any{"type": "integer", "minimum": 0},
			}},
		},
	},
	fBool: map[string]any{
		"type":     "object",
		"required": []string{"type", "value"},
		"properties": map[string]any{
			"type":  map[string]any{"const": "bool"},
			"value": map[string]any{"type": "boolean"},
		},
	},
}

// recordSchema builds the JSON Schema a record's tuple value must satisfy.
func recordSchema(fields map[string]string) ([]byte, error) {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for name, typ := range fields {
		props[name] = map[string]any{"$ref": "#/$defs/" + typ}
		required = append(required, name)
	}
	return json.Marshal(map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"type", "value"},
		"properties": map[string]any{
			"type": map[string]any{"const": "tuple"},
			"value": map[string]any{
				"type":       "object",
				"required":   required,
				"properties": props,
			},
		},
		"$defs": scalarDefs,
	})
}

var schemas = mustCompileSchemas()

func mustCompileSchemas() map[Kind]*jsonschema.Schema {
	out := make(map[Kind]*jsonschema.Schema, len(recordFields))
	for kind, fields := range recordFields {
		doc, err := recordSchema(fields)
		if err != nil {
			panic(fmt.Sprintf("reconcile: build %s schema: %v", kind, err))
		}
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://chainreg.local/schemas/%s.json", kind)
		if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
			panic(fmt.Sprintf("reconcile: load %s schema: %v", kind, err))
		}
		s, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("reconcile: compile %s schema: %v", kind, err))
		}
		out[kind] = s
	}
	return out
}

// unwrapRecord strips the optional/response wrappers around a record. It
// reports false when the wrapper says there is no record.
func unwrapRecord(v clarity.Value) (clarity.Value, bool) {
	if v.Type == clarity.TypeOK {
		inner, err := v.Inner()
		if err != nil {
			return clarity.Value{}, false
		}
		v = inner
	}
	if v.Type != clarity.TypeSome {
		return clarity.Value{}, false
	}
	inner, err := v.Inner()
	if err != nil {
		return clarity.Value{}, false
	}
	return inner, true
}

// checkedTuple validates v against kind's schema and returns its fields.
func checkedTuple(kind Kind, v clarity.Value) (map[string]clarity.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := schemas[kind].Validate(doc); err != nil {
		return nil, schemaError(err)
	}
	return v.AsTuple()
}

// schemaError flattens a jsonschema validation error to one line.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := strings.TrimPrefix(leaf.InstanceLocation, "/value")
	if loc == "" {
		loc = "/"
	}
	return fmt.Errorf("%s: %s", loc, leaf.Message)
}

// tupleReader pulls typed fields out of an already schema-checked tuple.
type tupleReader struct {
	fields map[string]clarity.Value
	err    error
}

func (r *tupleReader) str(name string) string {
	s, err := r.fields[name].AsString()
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", name, err)
	}
	return s
}

func (r *tupleReader) num(name string) uint64 {
	n, err := r.fields[name].AsUInt()
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", name, err)
	}
	return n
}

func (r *tupleReader) flag(name string) bool {
	b, err := r.fields[name].AsBool()
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", name, err)
	}
	return b
}

func decodeWith[T any](kind Kind, index uint64, v clarity.Value, build func(r *tupleReader) (T, error)) Decoded[T] {
	inner, ok := unwrapRecord(v)
	if !ok {
		return Decoded[T]{Status: StatusAbsent}
	}
	malformed := func(err error) Decoded[T] {
		return Decoded[T]{Status: StatusMalformed, Err: &model.DecodeError{Kind: string(kind), Index: index, Reason: err.Error()}}
	}
	fields, err := checkedTuple(kind, inner)
	if err != nil {
		return malformed(err)
	}
	r := &tupleReader{fields: fields}
	rec, err := build(r)
	if err == nil {
		err = r.err
	}
	if err != nil {
		return malformed(err)
	}
	return Decoded[T]{Status: StatusOK, Record: rec}
}

// DecodeAsset decodes a get-ip response for index id.
func DecodeAsset(id uint64, v clarity.Value) Decoded[model.AssetRecord] {
	return decodeWith(KindAsset, id, v, func(r *tupleReader) (model.AssetRecord, error) {
		return model.AssetRecord{
			ID:           id,
			ContentID:    r.str("ipfs-hash"),
			Title:        r.str("title"),
			Description:  r.str("description"),
			LicenseTag:   r.str("license-type"),
			ContentHash:  r.str("file-hash"),
			Category:     r.str("category"),
			Filename:     r.str("filename"),
			Owner:        r.str("owner"),
			RegisteredAt: r.num("timestamp"),
		}, nil
	})
}

// DecodeEvent decodes a get-event response for index id. A record whose
// sold count exceeds its capacity is malformed.
func DecodeEvent(id uint64, v clarity.Value) Decoded[model.EventRecord] {
	return decodeWith(KindEvent, id, v, func(r *tupleReader) (model.EventRecord, error) {
		e := model.EventRecord{
			ID:               id,
			ContentID:        r.str("ipfs-hash"),
			Title:            r.str("title"),
			Description:      r.str("description"),
			Location:         r.str("location"),
			EventBlock:       r.num("event-date"),
			TicketPriceMicro: r.num("ticket-price"),
			MaxTickets:       r.num("max-tickets"),
			SoldTickets:      r.num("sold-tickets"),
			Organizer:        r.str("organizer"),
			Category:         r.str("category"),
			CreatedAt:        r.num("timestamp"),
			IsActive:         r.flag("is-active"),
		}
		if r.err == nil && e.SoldTickets > e.MaxTickets {
			return e, fmt.Errorf("sold-tickets %d exceeds max-tickets %d", e.SoldTickets, e.MaxTickets)
		}
		return e, nil
	})
}

// DecodeTicket decodes a get-ticket response. The ticket id is taken from
// the record itself.
func DecodeTicket(index uint64, v clarity.Value) Decoded[model.TicketRecord] {
	return decodeWith(KindTicket, index, v, func(r *tupleReader) (model.TicketRecord, error) {
		return model.TicketRecord{
			TicketID:     r.num("ticket-id"),
			EventID:      r.num("event-id"),
			PurchaseTime: r.num("purchase-time"),
			IsValid:      r.flag("is-valid"),
			Owner:        r.str("owner"),
		}, nil
	})
}

// decodeCount accepts (ok uint) or a bare uint.
func decodeCount(v clarity.Value) (uint64, error) {
	inner, err := v.UnwrapOK()
	if err != nil {
		return 0, err
	}
	return inner.AsUInt()
}
