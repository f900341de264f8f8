package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・指定ラベル値のメトリクスを返す。labelが空なら最初のメトリクス。
func findMetric(t *testing.T, reg *prometheus.Registry, name, labelName, labelValue string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelName == "" {
				return m
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == labelName && lp.GetValue() == labelValue {
					return m
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, labelName, labelValue)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegisterPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestRecordLoginStarted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginStarted()
	c.RecordLoginStarted()

	m := findMetric(t, reg, "todaylaw_login_started_total", "", "")
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("login_started_total = %v, want 2", v)
	}
}

func TestRecordLoginCallback_CountsPerOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginCallback(OutcomeSuccess)
	c.RecordLoginCallback(OutcomeSuccess)
	c.RecordLoginCallback(OutcomeEmailNotVerified)

	if v := findMetric(t, reg, "todaylaw_login_callback_total", "outcome", OutcomeSuccess).GetCounter().GetValue(); v != 2 {
		t.Errorf("success = %v, want 2", v)
	}
	if v := findMetric(t, reg, "todaylaw_login_callback_total", "outcome", OutcomeEmailNotVerified).GetCounter().GetValue(); v != 1 {
		t.Errorf("email_not_verified = %v, want 1", v)
	}
}

func TestRecordUserCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUserCreated()

	if v := findMetric(t, reg, "todaylaw_users_created_total", "", "").GetCounter().GetValue(); v != 1 {
		t.Errorf("users_created_total = %v, want 1", v)
	}
}

func TestRecordSessionCheck_CountsPerStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCheck("valid")
	c.RecordSessionCheck("expired")
	c.RecordSessionCheck("expired")

	if v := findMetric(t, reg, "todaylaw_session_check_total", "status", "expired").GetCounter().GetValue(); v != 2 {
		t.Errorf("expired = %v, want 2", v)
	}
	if v := findMetric(t, reg, "todaylaw_session_check_total", "status", "valid").GetCounter().GetValue(); v != 1 {
		t.Errorf("valid = %v, want 1", v)
	}
}

func TestRecordProviderLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderLatency("token", 150*time.Millisecond)
	c.RecordProviderLatency("token", 250*time.Millisecond)

	h := findMetric(t, reg, "todaylaw_provider_request_duration_seconds", "step", "token").GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if sum := h.GetSampleSum(); sum < 0.39 || sum > 0.41 {
		t.Errorf("sample sum = %v, want ≈0.4", sum)
	}
}

func TestRecordHTTPStatus_CountsPerCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(302)
	c.RecordHTTPStatus(302)
	c.RecordHTTPStatus(502)

	if v := findMetric(t, reg, "todaylaw_http_status_total", "status_code", "302").GetCounter().GetValue(); v != 2 {
		t.Errorf("302 = %v, want 2", v)
	}
	if v := findMetric(t, reg, "todaylaw_http_status_total", "status_code", "502").GetCounter().GetValue(); v != 1 {
		t.Errorf("502 = %v, want 1", v)
	}
}

func TestNopCollector_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = NopCollector{}
	c.RecordLoginStarted()
	c.RecordLoginCallback(OutcomeSuccess)
	c.RecordUserCreated()
	c.RecordSessionCheck("valid")
	c.RecordProviderLatency("token", time.Second)
	c.RecordHTTPStatus(200)
}
