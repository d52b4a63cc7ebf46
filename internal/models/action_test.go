package models

import "testing"

func TestActionQueueRouting(t *testing.T) {
	cases := []struct {
		action ActionKind
		queue  string
	}{
		{ActionThumbnail, QueueImage},
		{ActionImageConvert, QueueImage},
		{ActionImageCompress, QueueImage},
		{ActionMetadata, QueueImage},
		{ActionVideoThumbnail, QueueVideo},
		{ActionVideoPreview, QueueVideo},
		{ActionVideoConvert, QueueVideo},
		{ActionCompress, QueueSecurity},
		{ActionEncrypt, QueueSecurity},
		{ActionDecrypt, QueueSecurity},
		{ActionVirusScan, QueueSecurity},
		{ActionAITag, QueueAI},
	}
	for _, c := range cases {
		if got := c.action.Queue(); got != c.queue {
			t.Errorf("%s.Queue() = %s, want %s", c.action, got, c.queue)
		}
	}
}

func TestParseAction(t *testing.T) {
	if _, ok := ParseAction("thumbnail"); !ok {
		t.Error("ParseAction(\"thumbnail\") should be valid")
	}
	if _, ok := ParseAction("not_a_real_action"); ok {
		t.Error("ParseAction(\"not_a_real_action\") should be invalid")
	}
}

func TestProducesArtifact(t *testing.T) {
	sideEffectOnly := []ActionKind{ActionVirusScan, ActionAITag, ActionMetadata}
	for _, a := range sideEffectOnly {
		if a.ProducesArtifact() {
			t.Errorf("%s.ProducesArtifact() = true, want false", a)
		}
	}

	derived := []ActionKind{
		ActionThumbnail, ActionImageConvert, ActionImageCompress,
		ActionVideoThumbnail, ActionVideoPreview, ActionVideoConvert,
		ActionCompress, ActionEncrypt, ActionDecrypt,
	}
	for _, a := range derived {
		if !a.ProducesArtifact() {
			t.Errorf("%s.ProducesArtifact() = false, want true", a)
		}
	}
}

func TestAllQueuesCoversRoutingTable(t *testing.T) {
	seen := make(map[string]bool)
	for _, q := range AllQueues {
		seen[q] = true
	}
	for a, q := range actionQueues {
		if !seen[q] {
			t.Errorf("action %s routes to %s, which is missing from AllQueues", a, q)
		}
	}
}
