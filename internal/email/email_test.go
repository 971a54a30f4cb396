package email

import "testing"

func TestSender_Configured(t *testing.T) {
	tests := []struct {
		name     string
		sender   *Sender
		expected bool
	}{
		{"nil sender", nil, false},
		{"empty", &Sender{}, false},
		{"missing password", &Sender{Host: "smtp.example.com", Port: "587", Username: "u"}, false},
		{"complete", &Sender{Host: "smtp.example.com", Port: "587", Username: "u", Password: "p"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.sender.Configured() != tc.expected {
				t.Errorf("Expected Configured()=%v", tc.expected)
			}
		})
	}
}

func TestSender_UnconfiguredSendIsNoOp(t *testing.T) {
	s := &Sender{}

	if err := s.Send("user@example.com", "subject", "body"); err != nil {
		t.Errorf("Unconfigured send should be a no-op, got: %v", err)
	}
}
