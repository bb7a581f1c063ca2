package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"garasiku/internal/types"
)

// PostgRESTClientConfig holds the hosted backend settings.
type PostgRESTClientConfig struct {
	// BaseURL is the project URL, e.g. https://xyz.supabase.co. The REST
	// prefix is appended by the client.
	BaseURL string
	// ServiceKey is sent both as apikey and as the bearer token.
	ServiceKey string
	Logger     *slog.Logger
}

// PostgRESTClient reads tasks, counts and parameters from a Supabase
// PostgREST endpoint through BaseClient.
type PostgRESTClient struct {
	base       *BaseClient
	restURL    string
	serviceKey string
	logger     *slog.Logger
}

// NewPostgRESTClient validates the base URL and builds a client with the
// default retry policy.
func NewPostgRESTClient(httpClient *http.Client, cfg PostgRESTClientConfig) (*PostgRESTClient, error) {
	base := NewBaseClient(httpClient, "postgrest", DefaultRetryPolicy(), "")
	return NewPostgRESTClientWithBase(base, cfg)
}

// NewPostgRESTClientWithBase builds a client around an existing BaseClient.
func NewPostgRESTClientWithBase(base *BaseClient, cfg PostgRESTClientConfig) (*PostgRESTClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("postgrest: invalid base URL %q", cfg.BaseURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgRESTClient{
		base:       base,
		restURL:    strings.TrimSuffix(cfg.BaseURL, "/") + "/rest/v1",
		serviceKey: cfg.ServiceKey,
		logger:     logger,
	}, nil
}

// restTaskRow is one row of service or administration with the embedded
// vehicle. The date column name differs per table.
type restTaskRow struct {
	TicketNum    string       `json:"ticket_num"`
	Type         string       `json:"type"`
	ScheduleDate string       `json:"schedule_date"`
	DueDate      string       `json:"due_date"`
	Status       string       `json:"status"`
	Vehicles     *restVehicle `json:"vehicles"`
}

type restVehicle struct {
	Name         string `json:"name"`
	LicensePlate string `json:"license_plate"`
}

func (v *restVehicle) ref() types.VehicleRef {
	if v == nil {
		return types.VehicleRef{}
	}
	return types.VehicleRef{Name: v.Name, LicensePlate: v.LicensePlate}
}

// ListDueMaintenanceTasks queries pending services scheduled on or before
// horizon, ordered by schedule date.
func (c *PostgRESTClient) ListDueMaintenanceTasks(ctx context.Context, horizon time.Time) ([]types.MaintenanceTask, error) {
	var rows []restTaskRow
	if err := c.getJSON(ctx, "service", dueTaskQuery("schedule_date", horizon), &rows); err != nil {
		return nil, err
	}

	tasks := make([]types.MaintenanceTask, 0, len(rows))
	for _, r := range rows {
		date, err := parseRESTDate(r.ScheduleDate)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamBackend,
				fmt.Sprintf("service %s: bad schedule_date %q", r.TicketNum, r.ScheduleDate), err)
		}
		tasks = append(tasks, types.MaintenanceTask{
			TicketNumber:  r.TicketNum,
			Type:          types.TaskType(r.Type),
			ScheduledDate: date,
			Vehicle:       r.Vehicles.ref(),
			Status:        types.TaskStatus(r.Status),
		})
	}
	return tasks, nil
}

// ListDueAdministrativeTasks queries pending administration tasks due on or
// before horizon, ordered by due date.
func (c *PostgRESTClient) ListDueAdministrativeTasks(ctx context.Context, horizon time.Time) ([]types.AdministrativeTask, error) {
	var rows []restTaskRow
	if err := c.getJSON(ctx, "administration", dueTaskQuery("due_date", horizon), &rows); err != nil {
		return nil, err
	}

	tasks := make([]types.AdministrativeTask, 0, len(rows))
	for _, r := range rows {
		date, err := parseRESTDate(r.DueDate)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamBackend,
				fmt.Sprintf("administration %s: bad due_date %q", r.TicketNum, r.DueDate), err)
		}
		tasks = append(tasks, types.AdministrativeTask{
			TicketNumber: r.TicketNum,
			Type:         types.TaskType(r.Type),
			DueDate:      date,
			Vehicle:      r.Vehicles.ref(),
			Status:       types.TaskStatus(r.Status),
		})
	}
	return tasks, nil
}

// CountDueTasks returns the dashboard counts using exact-count HEAD requests.
func (c *PostgRESTClient) CountDueTasks(ctx context.Context, horizon time.Time) (types.DueCounts, error) {
	var counts types.DueCounts
	var err error

	counts.Maintenance, err = c.count(ctx, "service", dueFilter("schedule_date", horizon))
	if err != nil {
		return types.DueCounts{}, err
	}
	counts.Administrative, err = c.count(ctx, "administration", dueFilter("due_date", horizon))
	if err != nil {
		return types.DueCounts{}, err
	}
	return counts, nil
}

// CountVehicles returns active and sold vehicle totals.
func (c *PostgRESTClient) CountVehicles(ctx context.Context) (types.VehicleCounts, error) {
	active, err := c.count(ctx, "vehicles", url.Values{"is_sold": {"eq.false"}})
	if err != nil {
		return types.VehicleCounts{}, err
	}
	sold, err := c.count(ctx, "vehicles", url.Values{"is_sold": {"eq.true"}})
	if err != nil {
		return types.VehicleCounts{}, err
	}
	return types.VehicleCounts{Active: active, Sold: sold}, nil
}

// GetParameter returns the description of the matching parameter row, or
// types.ErrParameterNotFound.
func (c *PostgRESTClient) GetParameter(ctx context.Context, group, name string) (string, error) {
	q := url.Values{
		"select": {"description"},
		"group":  {"eq." + group},
		"name":   {"eq." + name},
		"limit":  {"1"},
	}

	var rows []struct {
		Description string `json:"description"`
	}
	if err := c.getJSON(ctx, "parameter", q, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", types.ErrParameterNotFound
	}
	return rows[0].Description, nil
}

func dueFilter(dateColumn string, horizon time.Time) url.Values {
	return url.Values{
		"status":   {"eq." + string(types.TaskStatusPending)},
		dateColumn: {"lte." + formatRESTTime(horizon)},
	}
}

func dueTaskQuery(dateColumn string, horizon time.Time) url.Values {
	q := dueFilter(dateColumn, horizon)
	q.Set("select", "ticket_num,type,"+dateColumn+",status,vehicles(name,license_plate)")
	q.Set("order", dateColumn+".asc")
	return q
}

// formatRESTTime renders an instant the way JavaScript's toISOString does.
func formatRESTTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// parseRESTDate accepts the shapes PostgREST emits for date, timestamp and
// timestamptz columns. Values without an offset are read as UTC.
func parseRESTDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func (c *PostgRESTClient) newRequest(ctx context.Context, method, table string, q url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.restURL+"/"+table+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "postgrest: failed to build request", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *PostgRESTClient) getJSON(ctx context.Context, table string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, table, q)
	if err != nil {
		return err
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return wrapBackendError(table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return backendStatusError(table, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamBackend, "postgrest: malformed "+table+" response", err)
	}
	return nil
}

// count issues a HEAD request with Prefer: count=exact and reads the total
// from Content-Range ("0-24/25" or "*/0").
func (c *PostgRESTClient) count(ctx context.Context, table string, q url.Values) (int, error) {
	req, err := c.newRequest(ctx, http.MethodHead, table, q)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, wrapBackendError(table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, backendStatusError(table, resp)
	}

	cr := resp.Header.Get("Content-Range")
	slash := strings.LastIndex(cr, "/")
	if slash < 0 {
		return 0, types.NewAppError(types.ErrCodeUpstreamBackend,
			fmt.Sprintf("postgrest: %s count missing Content-Range", table), nil)
	}
	n, err := strconv.Atoi(cr[slash+1:])
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamBackend,
			fmt.Sprintf("postgrest: %s count unparseable Content-Range %q", table, cr), err)
	}
	return n, nil
}

type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func backendStatusError(table string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))

	var pgErr postgrestError
	if json.Unmarshal(body, &pgErr) == nil && pgErr.Message != "" {
		msg = pgErr.Message
		if pgErr.Code != "" {
			msg = pgErr.Code + " " + msg
		}
	}

	return types.NewAppError(
		types.ErrCodeUpstreamBackend,
		fmt.Sprintf("postgrest: %s returned %d: %s", table, resp.StatusCode, msg),
		nil,
	).WithDetails(map[string]any{"status": resp.StatusCode, "table": table})
}

func wrapBackendError(table string, err error) error {
	return types.NewAppError(
		types.ErrCodeUpstreamBackend,
		fmt.Sprintf("postgrest: %s request failed", table),
		err,
	)
}

var (
	_ TaskSource      = (*PostgRESTClient)(nil)
	_ DashboardSource = (*PostgRESTClient)(nil)
	_ ParameterSource = (*PostgRESTClient)(nil)
)
