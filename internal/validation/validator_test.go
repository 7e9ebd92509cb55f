// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/waymark/internal/models"
)

func TestValidateStructPasses(t *testing.T) {
	req := models.PublishPresenceRequest{Latitude: 52.52, Longitude: 13.405}
	if verr := ValidateStruct(&req); verr != nil {
		t.Fatalf("ValidateStruct() = %v, want nil", verr)
	}
}

func TestValidateStructCoordinateBounds(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		wantField string
	}{
		{"latitude too high", 91, 0, "latitude"},
		{"latitude too low", -90.5, 0, "latitude"},
		{"longitude too high", 0, 181, "longitude"},
		{"longitude too low", 0, -180.1, "longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.PublishPresenceRequest{Latitude: tt.lat, Longitude: tt.lon}
			verr := ValidateStruct(&req)
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), verr)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q (json names expected)", errs[0].Field(), tt.wantField)
			}
		})
	}
}

func TestValidateStructBoundaryValuesAccepted(t *testing.T) {
	corners := []models.PublishPresenceRequest{
		{Latitude: 90, Longitude: 180},
		{Latitude: -90, Longitude: -180},
		{Latitude: 0, Longitude: 0},
	}
	for _, req := range corners {
		if verr := ValidateStruct(&req); verr != nil {
			t.Errorf("ValidateStruct(%+v) = %v, want nil", req, verr)
		}
	}
}

func TestValidateLocationRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.CreateLocationRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  models.CreateLocationRequest{Name: "Community Garden", Latitude: 48.1, Longitude: 11.5},
		},
		{
			name:    "empty name",
			req:     models.CreateLocationRequest{Name: "", Latitude: 48.1, Longitude: 11.5},
			wantErr: true,
		},
		{
			name:    "name too long",
			req:     models.CreateLocationRequest{Name: strings.Repeat("x", 101), Latitude: 48.1, Longitude: 11.5},
			wantErr: true,
		},
		{
			name:    "description too long",
			req:     models.CreateLocationRequest{Name: "ok", Description: strings.Repeat("x", 501), Latitude: 48.1, Longitude: 11.5},
			wantErr: true,
		},
		{
			name: "description at limit",
			req:  models.CreateLocationRequest{Name: "ok", Description: strings.Repeat("x", 500), Latitude: 48.1, Longitude: 11.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.req)
			if (verr != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() = %v, wantErr %v", verr, tt.wantErr)
			}
		})
	}
}

func TestValidateStatusOneOf(t *testing.T) {
	for _, status := range []string{"pending", "approved", "denied"} {
		req := models.UpdateLocationStatusRequest{Status: status}
		if verr := ValidateStruct(&req); verr != nil {
			t.Errorf("status %q rejected: %v", status, verr)
		}
	}

	req := models.UpdateLocationStatusRequest{Status: "archived"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("status archived accepted, want error")
	}
	if !strings.Contains(verr.Error(), "must be one of") {
		t.Errorf("Error() = %q, want oneof message", verr.Error())
	}
}

func TestToAPIErrorSingleField(t *testing.T) {
	req := models.LoginRequest{Username: "", Password: "pw"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if apiErr.Details["field"] != "username" {
		t.Errorf("Details[field] = %v, want username", apiErr.Details["field"])
	}
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	req := models.LoginRequest{}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("got %d errors, want 2", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details[fields] has type %T, want []map[string]interface{}", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("got %d field entries, want 2", len(fields))
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() returned different instances")
	}
}
