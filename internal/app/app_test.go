package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garasiku/internal/config"
	"garasiku/internal/external"
	"garasiku/internal/reminder"
	"garasiku/internal/scheduler"
	"garasiku/internal/types"
)

func fakeBackend(t *testing.T, soon string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rest/v1/parameter":
			_ = json.NewEncoder(w).Encode([]map[string]string{{"description": "30"}})
		case "/rest/v1/service":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"ticket_num": "SRV-001", "type": "servis-berat", "schedule_date": soon, "status": "pending",
					"vehicles": map[string]string{"name": "Avanza", "license_plate": "B 1234 XY"}},
				{"ticket_num": "SRV-002", "type": "servis-regular", "schedule_date": soon, "status": "completed"},
			})
		case "/rest/v1/administration":
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testConfig(backendURL string) *config.Config {
	cfg := &config.Config{Environment: "local", LogLevel: "error"}
	cfg.Backend.Kind = config.BackendPostgREST
	cfg.Backend.SupabaseURL = backendURL
	cfg.Backend.ServiceRoleKey = "service-key"
	cfg.Email.Provider = config.EmailProviderStub
	cfg.Email.FromAddress = "noreply@garasiku.id"
	cfg.Email.FromName = "Garasiku Reminder"
	cfg.Reminder = config.ReminderConfig{
		ServiceRecipients: "bengkel@garasiku.id",
		DigestMode:        "auto",
		DispatchPolicy:    "best_effort",
		CallTimeout:       5 * time.Second,
		Timezone:          "Asia/Jakarta",
		ServiceSubject:    "Weekly Service Task Reminder - Garasiku",
	}
	return cfg
}

func TestBuild_RunsJobAgainstPostgREST(t *testing.T) {
	soon := time.Now().AddDate(0, 0, 3).Format("2006-01-02")
	backend := fakeBackend(t, soon)
	defer backend.Close()

	stub := external.NewStubEmailProvider(nil)
	a, err := Build(context.Background(), testConfig(backend.URL), NewLogger("error"), Options{EmailProvider: stub})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Runner.JobLock, "no database means no lock")

	summary, err := a.Runner.Run(context.Background(), scheduler.ReminderPayload{Task: scheduler.TaskSendReminders})
	require.NoError(t, err)
	assert.Equal(t, reminder.MsgSuccess, summary.Message)
	assert.Equal(t, 1, summary.ServiceTasks)
	assert.Equal(t, 0, summary.AdminTasks)

	sent := stub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, types.SenderIdentity{Name: "Garasiku Reminder", Address: "noreply@garasiku.id"}, sent[0].From)
	assert.Contains(t, sent[0].BodyHTML, "SRV-001")
	assert.NotContains(t, sent[0].BodyHTML, "SRV-002")
}

func TestBuild_HealthProbes(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "0-0/7")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	a, err := Build(context.Background(), testConfig(backend.URL), NewLogger("error"), Options{})
	require.NoError(t, err)

	probes := a.HealthProbes()
	require.Len(t, probes, 1)
	assert.Equal(t, "backend", probes[0].Name())
	assert.NoError(t, probes[0].Check(context.Background()))
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.Reminder.Timezone = "Mars/Olympus_Mons"
	_, err := Build(context.Background(), cfg, NewLogger("error"), Options{})
	require.Error(t, err)

	cfg = testConfig("not a url")
	_, err = Build(context.Background(), cfg, NewLogger("error"), Options{})
	require.Error(t, err)

	cfg = testConfig("http://localhost:1")
	cfg.Reminder.DispatchPolicy = "retry"
	_, err = Build(context.Background(), cfg, NewLogger("error"), Options{})
	require.Error(t, err)
}

func TestRecipientConfig(t *testing.T) {
	rc := RecipientConfig(config.ReminderConfig{
		ServiceRecipients:  "a@x.id",
		AdminRecipients:    "b@x.id",
		CombinedRecipients: "c@x.id",
		DigestMode:         "combined",
		CombinedSubject:    "Weekly",
	})
	assert.Equal(t, reminder.ModeCombined, rc.Mode)
	assert.Equal(t, "a@x.id", rc.Service)
	assert.Equal(t, "b@x.id", rc.Admin)
	assert.Equal(t, "c@x.id", rc.Combined)
	assert.Equal(t, "Weekly", rc.CombinedSubject)
}

func TestNewLogger(t *testing.T) {
	assert.True(t, NewLogger("debug").Enabled(context.Background(), -4))
	assert.False(t, NewLogger("warn").Enabled(context.Background(), 0))
	assert.True(t, NewLogger("nonsense").Enabled(context.Background(), 0))
}
