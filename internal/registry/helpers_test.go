package registry

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		prefix string
	}{
		{name: "simple", input: "House Prices", want: "house-prices"},
		{name: "keepsUnderscores", input: "house_prices v2", want: "house_prices-v2"},
		{name: "leadingTrailing", input: "--churn--", want: "churn"},
		{name: "consecutiveSeparators", input: "A    B!!C", want: "a-b-c"},
		{name: "trimToMaxLength", input: strings.Repeat("abc", 25), prefix: "abcabcabcabcabcabcabcabcabcabc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeName(tt.input)

			if tt.want != "" && got != tt.want {
				t.Fatalf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}

			if tt.prefix != "" && !strings.HasPrefix(got, tt.prefix) {
				t.Fatalf("SanitizeName(%q) = %q, expected prefix %q", tt.input, got, tt.prefix)
			}

			if len(got) > modelNameMaxLength {
				t.Fatalf("SanitizeName(%q) length = %d, exceeds max %d", tt.input, len(got), modelNameMaxLength)
			}
		})
	}
}

func TestValidateModelName(t *testing.T) {
	valid := []string{
		"churn",
		"house-prices",
		"house_prices",
		"m",
		"abc123",
		strings.Repeat("a", modelNameMaxLength),
	}

	for _, name := range valid {
		if err := ValidateModelName(name); err != nil {
			t.Fatalf("ValidateModelName(%q) returned error: %v", name, err)
		}
	}

	invalid := []struct {
		name string
	}{
		{""},
		{"Churn"},
		{"-leading"},
		{"trailing-"},
		{"_leading"},
		{"has space"},
		{strings.Repeat("a", modelNameMaxLength+1)},
	}

	for _, tt := range invalid {
		if err := ValidateModelName(tt.name); err == nil {
			t.Fatalf("ValidateModelName(%q) expected error, got nil", tt.name)
		}
	}
}

func TestDeriveModelName(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   string
		prefix string
	}{
		{name: "simple", path: "/data/house_prices.csv", want: "house_prices"},
		{name: "uppercaseAndSpaces", path: "/data/Sales Report.csv", want: "sales-report"},
		{name: "noExtension", path: "/data/churn", want: "churn"},
		{name: "longName", path: "/data/" + strings.Repeat("abc", 30) + ".csv", prefix: "abcabcabcabc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveModelName(tt.path)
			if tt.want != "" && got != tt.want {
				t.Fatalf("DeriveModelName(%q) = %q, want %q", tt.path, got, tt.want)
			}

			if tt.prefix != "" && !strings.HasPrefix(got, tt.prefix) {
				t.Fatalf("DeriveModelName(%q) = %q, expected prefix %q", tt.path, got, tt.prefix)
			}

			if err := ValidateModelName(got); err != nil {
				t.Fatalf("derived name %q is invalid: %v", got, err)
			}
		})
	}

	t.Run("nonAlphanumericOnly", func(t *testing.T) {
		path := filepath.Join("/data", "!!!.csv")
		got := DeriveModelName(path)
		if !strings.HasPrefix(got, "model-") {
			t.Fatalf("expected fallback prefix for %q, got %q", path, got)
		}
		if err := ValidateModelName(got); err != nil {
			t.Fatalf("fallback name %q failed validation: %v", got, err)
		}
	})
}
