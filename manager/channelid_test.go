package manager

import "testing"

func TestChannelIdFromIndex(t *testing.T) {
	id, ok := ChannelIdFromIndex(1, 3)
	if !ok || id != Connection2 {
		t.Fatalf("ChannelIdFromIndex(1, 3) = (%v, %v), want (Connection2, true)", id, ok)
	}

	if _, ok := ChannelIdFromIndex(3, 3); ok {
		t.Fatal("ChannelIdFromIndex(3, 3) should report false (out of range)")
	}
	if _, ok := ChannelIdFromIndex(-1, 3); ok {
		t.Fatal("ChannelIdFromIndex(-1, 3) should report false (out of range)")
	}
}

func TestChannelIdToIndex(t *testing.T) {
	if Connection1.ToIndex() != 0 || Connection2.ToIndex() != 1 || Connection3.ToIndex() != 2 {
		t.Fatal("ChannelId.ToIndex did not match expected zero-based ordering")
	}
}

func TestAllChannelIds(t *testing.T) {
	ids := AllChannelIds(3)
	if len(ids) != 3 {
		t.Fatalf("len(AllChannelIds(3)) = %d, want 3", len(ids))
	}
	for i, id := range ids {
		if id.ToIndex() != i {
			t.Errorf("ids[%d].ToIndex() = %d, want %d", i, id.ToIndex(), i)
		}
	}
}

func TestHealthSummaryClassification(t *testing.T) {
	healthy := HealthSummary{HealthyCount: 3}
	if !healthy.IsHealthy() {
		t.Error("all-healthy summary should report IsHealthy")
	}
	if healthy.HealthPercentage() != 100 {
		t.Errorf("HealthPercentage = %v, want 100", healthy.HealthPercentage())
	}

	degraded := HealthSummary{HealthyCount: 2, UnhealthyIDs: []int{2}}
	if !degraded.IsDegraded() {
		t.Error("mixed summary should report IsDegraded")
	}
	if degraded.IsHealthy() || degraded.IsCritical() {
		t.Error("degraded summary should be neither healthy nor critical")
	}

	critical := HealthSummary{HealthyCount: 0, UnhealthyIDs: []int{0, 1, 2}}
	if !critical.IsCritical() {
		t.Error("all-unhealthy summary should report IsCritical")
	}

	empty := HealthSummary{}
	if empty.HealthPercentage() != 100 {
		t.Errorf("empty HealthPercentage = %v, want 100", empty.HealthPercentage())
	}
}
