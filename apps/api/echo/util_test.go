package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"

	"github.com/somakids/engage/core"
	"github.com/somakids/engage/core/progress"
	"github.com/somakids/engage/core/session"
	"github.com/somakids/engage/core/telemetry"
	inmemdb "github.com/somakids/engage/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// nopLogger keeps test output quiet.
type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testApp struct {
	server  *Server
	lessons interface{ AddLesson(string) }
	agg     *telemetry.Aggregator
}

func initApp(t *testing.T) *testApp {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("initApp() failed: %v", err)
	}
	lessons := inmemdb.NewLessonDirectory(db)

	agg := telemetry.NewAggregator(telemetry.NewPolicy(conf.Engagement))
	sessionSvc := session.NewService(inmemdb.NewSessionRepository(db), agg)
	progressSvc := progress.NewService(inmemdb.NewProgressRepository(db), lessons)

	server := NewServer(ServerDeps{
		Conf:        conf,
		Logger:      nopLogger{},
		SessionSvc:  sessionSvc,
		ProgressSvc: progressSvc,
		Aggregator:  agg,
	})
	return &testApp{server: server, lessons: lessons, agg: agg}
}

// getToken mints a signed token the way the identity system fronting this
// service would; tokens are only ever verified here, never issued.
func getToken(t *testing.T, userID string, roles ...string) string {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    appName,
			Subject:   userID,
			ExpiresAt: now.Add(expirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: userID,
		Roles:    roles,
	}
	for _, role := range roles {
		switch role {
		case "student":
			claims.IsStudent = true
		case "teacher":
			claims.IsTeacher = true
		case "admin":
			claims.IsAdmin = true
		}
	}

	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token, err := jwt.NewWithClaims(method, claims).SignedString(secretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// startSession drives the API to open a session and returns it.
func startSession(t *testing.T, app *testApp, token, lessonID string) session.Session {
	body := marshallObj(t, session.NewSession{LessonID: lessonID, DeviceInfo: "test"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/sessions", token, body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("startSession() code = %v; body = %s", rec.Code, rec.Body.String())
	}
	var sess session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("startSession() unmarshal failed: %v", err)
	}
	return sess
}
