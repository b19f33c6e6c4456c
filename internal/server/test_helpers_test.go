package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/resolutionwall/backend/internal/config"
	"github.com/resolutionwall/backend/internal/database"
	"github.com/resolutionwall/backend/internal/resolutions"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

func testAppConfig(pageSize int) config.AppConfig {
	return config.AppConfig{
		HTTPAddress:          "127.0.0.1:0",
		DatabasePath:         "unused",
		LogLevel:             "error",
		SessionSecret:        testSessionSecret,
		SessionCookieName:    "resolutions_session",
		MaxMessageLen:        400,
		PageSize:             pageSize,
		CountCacheTTL:        0,
		Countries:            []string{"Italy", "Japan", "Other"},
		ResolutionCategories: []string{"Health & Fitness", "Career & Work", "Other"},
		Motivations:          []string{"Personal growth", "Family", "Other"},
	}
}

type testApp struct {
	handler http.Handler
	service *resolutions.Service
	cookies []*http.Cookie
}

func newTestApp(testContext *testing.T, pageSize int) *testApp {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(testContext.Name(), "/", "_"))
	db, err := database.OpenSQLite(dsn, nil)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	// A stepping clock keeps feed order deterministic even when seeding
	// several records in the same instant.
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	service, err := resolutions.NewService(resolutions.ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			current = current.Add(time.Minute)
			return current
		},
		Logger: zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Service: service,
		Config:  testAppConfig(pageSize),
		Logger:  zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	return &testApp{handler: handler, service: service}
}

// do performs a request replaying the session cookies collected so far, the
// way a browser would.
func (app *testApp) do(testContext *testing.T, method, path, body string) *httptest.ResponseRecorder {
	testContext.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, nil)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	for _, sessionCookie := range app.cookies {
		request.AddCookie(sessionCookie)
	}

	recorder := httptest.NewRecorder()
	app.handler.ServeHTTP(recorder, request)

	response := http.Response{Header: recorder.Header()}
	if fresh := response.Cookies(); len(fresh) > 0 {
		app.cookies = lastCookiePerName(fresh)
	}
	return recorder
}

// lastCookiePerName mirrors browser behavior: when a response carries
// several Set-Cookie headers for the same name, only the last one survives.
func lastCookiePerName(cookies []*http.Cookie) []*http.Cookie {
	byName := make(map[string]*http.Cookie, len(cookies))
	order := make([]string, 0, len(cookies))
	for _, responseCookie := range cookies {
		if _, seen := byName[responseCookie.Name]; !seen {
			order = append(order, responseCookie.Name)
		}
		byName[responseCookie.Name] = responseCookie
	}
	deduped := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		deduped = append(deduped, byName[name])
	}
	return deduped
}

// seedRecords inserts submissions for distinct identities; the stepping
// clock gives each one a later timestamp than the previous.
func (app *testApp) seedRecords(testContext *testing.T, count int) {
	testContext.Helper()
	for i := 0; i < count; i++ {
		draft := resolutions.Draft{
			Message:              fmt.Sprintf("resolution %d", i),
			Categories:           []string{"Other"},
			Motivations:          []string{"Other"},
			PastYearScore:        3,
			NewYearScore:         4,
			CompletionConfidence: 3,
		}
		anonID, err := resolutions.NewAnonID(fmt.Sprintf("seed-%d", i))
		if err != nil {
			testContext.Fatalf("failed to build anon id: %v", err)
		}
		if _, err := app.service.Submit(context.Background(), anonID, draft); err != nil {
			testContext.Fatalf("failed to seed record %d: %v", i, err)
		}
	}
}
