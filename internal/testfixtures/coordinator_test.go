package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/telehealth-gateway/internal/application"
)

func TestHarnessCoordinator_ProviderThenPatient(t *testing.T) {
	h := NewSQLiteHarness(t)
	visit := h.SeedVisit(t)
	coordinator := h.Coordinator()
	ctx := context.Background()

	provider := application.ProviderCaller(visit.Provider.Username)
	patient := application.PatientCaller(visit.Patient.ID)
	params := application.Params{"pc_eid": visit.Appointment.ID}

	launch := coordinator.Dispatch(ctx, application.VariantProvider, provider, "launch_data", params)
	if launch.Status != application.StatusOK {
		t.Fatalf("provider launch failed: %+v", launch)
	}
	data := launch.Body.(application.LaunchData)
	if !data.IsModerator || data.EncounterID == "" {
		t.Fatalf("expected moderator launch with encounter, got %+v", data)
	}

	if res := coordinator.Dispatch(ctx, application.VariantProvider, provider, "heartbeat", params); res.Status != application.StatusOK {
		t.Fatalf("heartbeat failed: %+v", res)
	}

	h.Clock.Advance(10 * time.Second)
	ready := coordinator.Dispatch(ctx, application.VariantPortal, patient, "patient_ready_check", params)
	if ready.Status != application.StatusOK || !ready.Body.(application.Readiness).ProviderReady {
		t.Fatalf("expected provider ready, got %+v", ready)
	}

	joined := coordinator.Dispatch(ctx, application.VariantPortal, patient, "launch_data", params)
	if joined.Status != application.StatusOK {
		t.Fatalf("patient launch failed: %+v", joined)
	}
	if joined.Body.(application.LaunchData).RoomName != data.RoomName {
		t.Fatalf("participants must share the room")
	}

	pc, err := h.Store.ProviderContexts.GetProviderContext(ctx, visit.Provider.Username)
	if err != nil {
		t.Fatalf("provider context: %v", err)
	}
	if pc.PatientID != visit.Patient.ID || pc.EncounterID != data.EncounterID {
		t.Fatalf("unexpected provider context %+v", pc)
	}

	h.Clock.Advance(10 * time.Second)
	ready = coordinator.Dispatch(ctx, application.VariantPortal, patient, "patient_ready_check", params)
	if ready.Body.(application.Readiness).ProviderReady {
		t.Fatalf("expected provider presence to go stale")
	}
}
