package server

import (
	"net/http"
	"testing"
)

func TestStatsOverEmptyStore(testContext *testing.T) {
	app := newTestApp(testContext, 2)

	recorder := app.do(testContext, http.MethodGet, "/api/stats", "")
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected status: %d", recorder.Code)
	}

	var payload statsPayload
	decodeBody(testContext, recorder.Body.Bytes(), &payload)
	if payload.Total != 0 {
		testContext.Fatalf("expected total 0, got %d", payload.Total)
	}
	if payload.AveragePastYear != nil || payload.AverageNewYear != nil {
		testContext.Fatalf("averages over no data must be null, got %#v", payload)
	}
}

func TestStatsAggregatesSubmissions(testContext *testing.T) {
	app := newTestApp(testContext, 2)
	app.seedRecords(testContext, 3)

	recorder := app.do(testContext, http.MethodGet, "/api/stats", "")
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected status: %d", recorder.Code)
	}

	var payload statsPayload
	decodeBody(testContext, recorder.Body.Bytes(), &payload)
	if payload.Total != 3 {
		testContext.Fatalf("expected total 3, got %d", payload.Total)
	}
	if payload.AveragePastYear == nil || *payload.AveragePastYear != 3 {
		testContext.Fatalf("unexpected past year average: %#v", payload.AveragePastYear)
	}
	if payload.AverageNewYear == nil || *payload.AverageNewYear != 4 {
		testContext.Fatalf("unexpected new year average: %#v", payload.AverageNewYear)
	}
	if payload.CategoryCounts["Other"] != 3 {
		testContext.Fatalf("unexpected category counts: %#v", payload.CategoryCounts)
	}
	if payload.MotivationCounts["Other"] != 3 {
		testContext.Fatalf("unexpected motivation counts: %#v", payload.MotivationCounts)
	}
}

func TestNewHTTPHandlerRequiresService(testContext *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{Config: testAppConfig(2)}); err == nil {
		testContext.Fatalf("expected error for missing service")
	}
}
