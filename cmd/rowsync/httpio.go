package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/pkg/rowsync"
)

var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// toRecord converts a decoded JSON object to column values of s. The
// identifier column is ignored.
func toRecord(s *rowsync.Schema, body map[string]any) (rowsync.Record, error) {
	idCol, err := s.IDColumn()
	if err != nil {
		return nil, err
	}

	record := make(rowsync.Record, len(body))
	for name, raw := range body {
		if name == idCol.Name {
			continue
		}
		col, ok := s.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", rowsync.ErrUnknownColumn, name)
		}
		v, err := toValue(col, raw)
		if err != nil {
			return nil, err
		}
		record[name] = v
	}
	return record, nil
}

// toValue converts one decoded JSON value to the Go type of col.
func toValue(col *rowsync.Column, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case json.Number:
		raw = v.String()
	}
	if col.Kind == core.KindJSON {
		text, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", errBadRequest, col.Name, err)
		}
		raw = string(text)
	}
	return rowsync.ParseValue(col, raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rowsync.ErrRowNotFound), errors.Is(err, rowsync.ErrTableNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, rowsync.ErrTypeMismatch),
		errors.Is(err, rowsync.ErrInvalidEnumMember),
		errors.Is(err, rowsync.ErrUnknownColumn):
		return http.StatusBadRequest
	case errors.Is(err, rowsync.ErrReconcileDisabled):
		return http.StatusConflict
	case errors.Is(err, rowsync.ErrBackendUnavailable), errors.Is(err, rowsync.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
