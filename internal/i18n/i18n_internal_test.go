package i18n

import (
	"testing"
)

func TestNewLocalizer(t *testing.T) {
	localizer, err := NewLocalizer()
	if err != nil {
		t.Fatalf("Failed to create localizer: %v", err)
	}

	if localizer == nil {
		t.Fatal("Localizer is nil")
	}

	if len(localizer.translations) == 0 {
		t.Fatal("No translations loaded")
	}

	// Check that both languages are loaded
	if _, ok := localizer.translations["en"]; !ok {
		t.Error("English translations not loaded")
	}

	if _, ok := localizer.translations["it"]; !ok {
		t.Error("Italian translations not loaded")
	}
}

func TestGet(t *testing.T) {
	localizer, err := NewLocalizer()
	if err != nil {
		t.Fatalf("Failed to create localizer: %v", err)
	}

	tests := []struct {
		name     string
		lang     string
		key      string
		expected string
	}{
		{
			name:     "English welcome message",
			lang:     "en",
			key:      "start.welcome",
			expected: "Welcome! Use /tasks to browse the task list.",
		},
		{
			name:     "Italian welcome message",
			lang:     "it",
			key:      "start.welcome",
			expected: "Benvenuto! Usa /tasks per sfogliare l'elenco delle attività.",
		},
		{
			name:     "Fallback to English",
			lang:     "unknown",
			key:      "start.welcome",
			expected: "Welcome! Use /tasks to browse the task list.",
		},
		{
			name:     "Non-existent key returns key itself",
			lang:     "en",
			key:      "non.existent.key",
			expected: "non.existent.key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := localizer.Get(tt.lang, tt.key)
			if result != tt.expected {
				t.Errorf("Get(%q, %q) = %q, want %q", tt.lang, tt.key, result, tt.expected)
			}
		})
	}
}

func TestGetWithData(t *testing.T) {
	localizer, err := NewLocalizer()
	if err != nil {
		t.Fatalf("Failed to create localizer: %v", err)
	}

	tests := []struct {
		name     string
		lang     string
		key      string
		data     map[string]interface{}
		expected string
	}{
		{
			name: "Replace single placeholder in English",
			lang: "en",
			key:  "msg.updated",
			data: map[string]interface{}{
				"count": 3,
			},
			expected: "Done, 3 task(s) updated.",
		},
		{
			name: "Replace single placeholder in Italian",
			lang: "it",
			key:  "msg.updated",
			data: map[string]interface{}{
				"count": 3,
			},
			expected: "Fatto, 3 attività aggiornate.",
		},
		{
			name: "Replace multiple placeholders",
			lang: "en",
			key:  "list.page",
			data: map[string]interface{}{
				"page":  2,
				"pages": 5,
				"total": 42,
			},
			expected: "Page 2 of 5 (42 tasks)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := localizer.GetWithData(tt.lang, tt.key, tt.data)
			if result != tt.expected {
				t.Errorf("GetWithData(%q, %q, %v) = %q, want %q", tt.lang, tt.key, tt.data, result, tt.expected)
			}
		})
	}
}

func TestNormalizeLanguageCode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "English", input: "en", expected: "en"},
		{name: "Italian", input: "it", expected: "it"},
		{name: "Regional English", input: "en-US", expected: "en"},
		{name: "Regional Italian", input: "it-IT", expected: "it"},
		{name: "Unsupported language", input: "de", expected: "en"},
		{name: "Empty code", input: "", expected: "en"},
		{name: "Single letter", input: "e", expected: "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeLanguageCode(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeLanguageCode(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
