package utils

import (
	"os"
	"path/filepath"
	"testing"
)

type classFile struct {
	Name     string   `yaml:"name"`
	Students []string `yaml:"students"`
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "existing.txt")
	if err := os.WriteFile(existingFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{name: "existing file returns true", filename: existingFile, expected: true},
		{name: "non-existing file returns false", filename: filepath.Join(tmpDir, "nonexistent.txt"), expected: false},
		{name: "directory returns true", filename: tmpDir, expected: true},
		{name: "empty path returns false", filename: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileExists(tt.filename); got != tt.expected {
				t.Errorf("FileExists(%q) = %v, want %v", tt.filename, got, tt.expected)
			}
		})
	}
}

func TestReadYAML(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name        string
		content     string
		expectError bool
		validate    func(*testing.T, classFile)
	}{
		{
			name:    "class record",
			content: "name: Algebra\nstudents:\n  - alice\n  - bob\n",
			validate: func(t *testing.T, c classFile) {
				if c.Name != "Algebra" {
					t.Errorf("Name = %q, want Algebra", c.Name)
				}
				if len(c.Students) != 2 || c.Students[1] != "bob" {
					t.Errorf("Students = %v", c.Students)
				}
			},
		},
		{name: "invalid YAML syntax", content: "name: [unclosed", expectError: true},
		{name: "empty file", content: "", expectError: true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, "class"+string(rune('a'+i))+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			var c classFile
			err := ReadYAML(path, &c)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.validate(t, c)
		})
	}
}

func TestReadYAMLNonExistentFile(t *testing.T) {
	var c classFile
	if err := ReadYAML("/nonexistent/path/class.yaml", &c); err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestReadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class.xml")
	want := "<class><name>Algebra</name></class>"
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadPayload(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got) != want {
		t.Errorf("ReadPayload() = %q, want %q", got, want)
	}

	if _, err := ReadPayload(filepath.Join(t.TempDir(), "missing.xml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReadPayloadStdin(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	prev := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = prev })

	if _, err := w.WriteString(`{"name":"Algebra"}`); err != nil {
		t.Fatal(err)
	}
	_ = w.Close()

	got, err := ReadPayload("-")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got) != `{"name":"Algebra"}` {
		t.Errorf("ReadPayload(-) = %q", got)
	}
}
