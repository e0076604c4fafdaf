package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/chainreg/internal/content"
	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/txbuild"
)

// Workflow names recorded in results and the journal.
const (
	NameRegistration   = "registration"
	NameEventCreation  = "event_creation"
	NameTicketPurchase = "ticket_purchase"
)

// LicenseCustom selects a caller-supplied licence document.
const LicenseCustom = "CUSTOM"

// RegistrationInput describes an asset to register.
type RegistrationInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	License     string `json:"license"`
	File        *File  `json:"file"`
	LicenseFile *File  `json:"license_file,omitempty"` // required when License is CUSTOM
}

// Registration registers ownership of one asset.
type Registration struct {
	deps *Deps
	once once
}

// NewRegistration creates a single-use registration workflow.
func NewRegistration(deps *Deps) *Registration {
	return &Registration{deps: deps}
}

// Run drives the registration to a reported outcome. The returned error is
// a *StageError on failure; the Result is populated either way.
func (w *Registration) Run(ctx context.Context, in RegistrationInput) (*Result, error) {
	if err := w.once.claim(); err != nil {
		return nil, err
	}
	r, err := newRun(w.deps, NameRegistration)
	if err != nil {
		return nil, err
	}
	const failTitle = "Registration Failed"

	if err := r.enter(ctx, StateValidating, "Validating asset details..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	custom := strings.EqualFold(in.License, LicenseCustom)
	if err := validateRegistration(in, custom); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	file := asBlob(in.File, content.RolePrimary)

	if err := r.enter(ctx, StateUploadingPrimary, "Uploading file to content store..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	fileCID, err := w.deps.Uploader.Upload(ctx, []content.Blob{file}, map[string]any{
		"name": file.Name,
		"type": "ip-file",
	})
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}

	license := in.License
	if custom {
		if err := r.enter(ctx, StateUploadingSecondary, "Uploading licence document..."); err != nil {
			return r.fail(ctx, failTitle, err)
		}
		doc := asBlob(in.LicenseFile, content.RoleDocument)
		docCID, err := w.deps.Uploader.Upload(ctx, []content.Blob{doc}, map[string]any{
			"name": doc.Name,
			"type": "license-document",
		})
		if err != nil {
			return r.fail(ctx, failTitle, err)
		}
		license = LicenseCustom + ":" + content.GatewayURL(w.deps.GatewayURL, docCID, doc.Name)
	}

	if err := r.enter(ctx, StateUploadingMetadata, "Uploading metadata..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	hash := content.Digest(file.Data)
	contentID, err := w.deps.Uploader.Upload(ctx, []content.Blob{file}, map[string]any{
		"title":       in.Title,
		"description": in.Description,
		"category":    in.Category,
		"license":     license,
		"filename":    file.Name,
		"file_hash":   hash,
		"file_cid":    fileCID,
		"type":        "ip-registration",
	})
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}
	r.result.ContentID = contentID

	if err := r.enter(ctx, StateSubmitting, "Registering asset on the ledger..."); err != nil {
		return r.fail(ctx, failTitle, err)
	}
	d, err := w.deps.Builder.RegisterAsset(txbuild.RegisterAssetFields{
		ContentID:   contentID,
		Title:       in.Title,
		Description: in.Description,
		LicenseTag:  license,
		ContentHash: hash,
		Category:    in.Category,
		Filename:    file.Name,
	})
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}
	txid, err := w.deps.Submitter.Submit(ctx, d)
	if err != nil {
		return r.fail(ctx, failTitle, err)
	}

	msg := fmt.Sprintf("Your asset %q has been registered on the ledger.", in.Title)
	return r.succeed(ctx, txid, "Registration Successful", msg), nil
}

func validateRegistration(in RegistrationInput, custom bool) error {
	ve := &model.ValidationError{}
	ve.Require(
		"title", in.Title,
		"description", in.Description,
		"category", in.Category,
		"license", in.License,
	)
	// Everything that ends up in a string-ascii argument is checked here,
	// before any upload.
	txbuild.RequireASCII(ve,
		"title", in.Title,
		"description", in.Description,
		"category", in.Category,
		"license", in.License,
	)
	if in.File != nil {
		txbuild.RequireASCII(ve, "filename", in.File.Name)
	}
	if custom && in.LicenseFile != nil {
		txbuild.RequireASCII(ve, "license_file", in.LicenseFile.Name)
	}
	if in.File.empty() {
		ve.Add("file", "is required")
	} else if err := content.ValidateBlob(asBlob(in.File, content.RolePrimary)); err != nil {
		return mergeValidation(ve, err)
	}
	if custom {
		if in.LicenseFile.empty() {
			ve.Add("license_file", "is required for a custom licence")
		} else if err := content.ValidateBlob(asBlob(in.LicenseFile, content.RoleDocument)); err != nil {
			return mergeValidation(ve, err)
		}
	}
	return ve.Err()
}

// mergeValidation appends err's field errors to ve.
func mergeValidation(ve *model.ValidationError, err error) error {
	var other *model.ValidationError
	if errors.As(err, &other) {
		ve.Errors = append(ve.Errors, other.Errors...)
		return ve
	}
	return err
}
