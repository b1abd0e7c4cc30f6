package service

import "testing"

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "plain hi", text: "hi", want: true},
		{name: "trailing space", text: "hi ", want: true},
		{name: "upper with punctuation", text: "HELLO!", want: true},
		{name: "hey there is not a phrase", text: "hey there everyone", want: false},
		{name: "good morning", text: "Good morning", want: true},
		{name: "good morning with followup", text: "good morning team", want: true},
		{name: "greeting plus question", text: "hi, what's the refund policy?", want: false},
		{name: "real question", text: "what is the refund policy?", want: false},
		{name: "empty", text: "", want: false},
		{name: "whitespace only", text: "   ", want: false},
		{name: "howdy", text: "Howdy!", want: true},
		{name: "substring is not a greeting", text: "hive mind architecture", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGreeting(tt.text); got != tt.want {
				t.Errorf("IsGreeting(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
