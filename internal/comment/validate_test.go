package comment

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseBounded(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		min     int
		max     int
		want    int
		wantErr bool
	}{
		{"in range", "3", 1, 5, 3, false},
		{"lower bound", "1", 1, 5, 1, false},
		{"upper bound", "5", 1, 5, 5, false},
		{"padded", " 2 ", 1, 5, 2, false},
		{"below", "0", 1, 5, 0, true},
		{"above", "6", 1, 5, 0, true},
		{"missing", "", 1, 5, 0, true},
		{"not a number", "three", 1, 5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBounded(tt.raw, "num-comments", tt.min, tt.max)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseBoundedBadBounds(t *testing.T) {
	_, err := ParseBounded("1", "x", 5, 1)
	if err == nil {
		t.Fatal("expected error when max < min")
	}
	if errors.Is(err, ErrInvalid) {
		t.Error("bad bounds are a programming error, not invalid input")
	}
}

func TestParseBoundedMessage(t *testing.T) {
	_, err := ParseBounded("9", "blog-number", 1, 5)
	if err == nil || !strings.Contains(err.Error(), "between 1 to 5") {
		t.Errorf("err = %v, want range message", err)
	}
}

func TestValidateSubmission(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name    string
		sub     Submission
		wantErr string
	}{
		{"valid", Submission{BlogID: 1, Name: "Ann", Content: "hi"}, ""},
		{"blog too high", Submission{BlogID: 6, Name: "Ann", Content: "hi"}, "blog-number"},
		{"blog zero", Submission{BlogID: 0, Name: "Ann", Content: "hi"}, "blog-number"},
		{"blank name", Submission{BlogID: 1, Name: "   ", Content: "hi"}, "name is required"},
		{"missing content", Submission{BlogID: 1, Name: "Ann"}, "content is required"},
		{"long name", Submission{BlogID: 1, Name: strings.Repeat("a", 51), Content: "hi"}, "1 to 50"},
		{"long content", Submission{BlogID: 1, Name: "Ann", Content: strings.Repeat("x", 265)}, "1 to 264"},
		{"max content", Submission{BlogID: 1, Name: "Ann", Content: strings.Repeat("x", 264)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := tt.sub
			err := ValidateSubmission(&sub, limits)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSubmissionImageTooLarge(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxImageBytes = 4

	sub := Submission{BlogID: 1, Name: "Ann", Content: "hi", Image: &Image{Filename: "a.png", Data: pngHeader}}
	if err := ValidateSubmission(&sub, limits); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestBlogCountJSON(t *testing.T) {
	data, err := json.Marshal([]BlogCount{{BlogID: 1, Count: 4}, {BlogID: 3, Count: 2}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[[1,4],[3,2]]" {
		t.Errorf("json = %s, want [[1,4],[3,2]]", data)
	}

	var bc BlogCount
	if err := json.Unmarshal([]byte("[1,2,3]"), &bc); err == nil {
		t.Error("expected error for a three-element pair")
	}
}

func TestLimitsPageCount(t *testing.T) {
	l := DefaultLimits()

	tests := []struct {
		total, size, want int
	}{
		{0, 3, 0},
		{1, 3, 1},
		{3, 3, 1},
		{4, 3, 2},
		{100, 5, 6},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := l.PageCount(tt.total, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}
