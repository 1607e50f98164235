package notifier

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestConsoleNotifierRoutesBySeverity(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := NewConsoleNotifier(WithStreams(&stdout, &stderr), WithTimestamp(false))

	sent, err := c.Send(context.Background(), Notification{Title: "info", Message: "ok", Severity: SeverityInfo})
	if err != nil || !sent {
		t.Fatalf("Send(info) = %v, %v, want true, nil", sent, err)
	}
	sent, err = c.Send(context.Background(), Notification{Title: "fail", Message: "bad", Severity: SeverityError})
	if err != nil || !sent {
		t.Fatalf("Send(error) = %v, %v, want true, nil", sent, err)
	}

	if !strings.Contains(stdout.String(), "ok") {
		t.Fatalf("stdout = %q, want to contain the info message", stdout.String())
	}
	if !strings.Contains(stderr.String(), "bad") {
		t.Fatalf("stderr = %q, want to contain the error message", stderr.String())
	}
	if strings.Contains(stdout.String(), "bad") {
		t.Fatal("error-severity notification leaked into stdout")
	}
}

func TestConsoleNotifierDropsBelowMinSeverity(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := NewConsoleNotifier(WithStreams(&stdout, &stderr), WithMinSeverity(SeverityWarning))

	sent, err := c.Send(context.Background(), Notification{Title: "t", Message: "m", Severity: SeverityInfo})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent {
		t.Fatal("Send() should report false for a notification below MinSeverity")
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout should stay empty for a dropped notification, got %q", stdout.String())
	}
}

func TestConsoleNotifierFormatsTags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := NewConsoleNotifier(WithStreams(&stdout, &stderr), WithTimestamp(false))

	_, err := c.Send(context.Background(), Notification{
		Title: "t", Message: "m", Severity: SeverityInfo, Tags: []string{"feed-a", "new"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(stdout.String(), "#feed-a") || !strings.Contains(stdout.String(), "#new") {
		t.Fatalf("output = %q, want tags rendered as #tag", stdout.String())
	}
}

func TestConsoleNotifierOmitsTagsWhenDisabled(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := NewConsoleNotifier(WithStreams(&stdout, &stderr), WithTimestamp(false), WithTags(false))

	_, err := c.Send(context.Background(), Notification{
		Title: "t", Message: "m", Severity: SeverityInfo, Tags: []string{"feed-a"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if strings.Contains(stdout.String(), "#feed-a") {
		t.Fatalf("output = %q, want no tags when WithTags(false)", stdout.String())
	}
}

func TestSeverityStringCoversEveryLevel(t *testing.T) {
	cases := map[Severity]string{
		SeverityDebug:    "debug",
		SeverityInfo:     "info",
		SeverityWarning:  "warning",
		SeverityError:    "error",
		SeverityCritical: "critical",
	}
	for sev, want := range cases {
		if got := sev.String(); got != want {
			t.Fatalf("Severity(%d).String() = %q, want %q", sev, got, want)
		}
	}
}

func TestNullNotifierReportsUndeliveredWithoutError(t *testing.T) {
	n := Null()
	sent, err := n.Send(context.Background(), Notification{Title: "t", Message: "m"})
	if err != nil || sent {
		t.Fatalf("Null().Send() = %v, %v, want false, nil", sent, err)
	}
}
