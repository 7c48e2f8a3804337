package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `collections:
  events:
    - id: e1
      title: Kickoff
      type: meeting
      status: approved
      date: "2025-03-15"
      time: "10:00"
      duration: 30
    - id: e2
      title: Release
      type: deadline
      date: "2025-03-20"
  meetingRequests:
    - id: r1
      clientName: Acme
      requestedDate: "2025-03-15"
      requestedTime: "14:00"
      purpose: Scope
      status: pending
`

const importICS = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:retro
SUMMARY:Retro
DTSTART:20250321T060000Z
DTEND:20250321T070000Z
END:VEVENT
END:VCALENDAR
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o600))
	conf := filepath.Join(dir, "teamcal.yaml")
	require.NoError(t, os.WriteFile(conf, []byte(`timezone: UTC
log_level: ERROR
store:
  driver: sqlite
  path: `+filepath.Join(dir, "teamcal.db")+`
  seed: `+seed+`
`), 0o600))
	return conf
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	conf := writeFixture(t)
	out, err := run(t, "--config", conf, "stats")
	require.NoError(t, err)
	assert.Equal(t, "Events 2  Approved meetings 1  Upcoming deadlines 0  Pending requests 1\n", out)
}

func TestDayCommand(t *testing.T) {
	conf := writeFixture(t)
	out, err := run(t, "--config", conf, "day", "2025-03-15")
	require.NoError(t, err)
	assert.Contains(t, out, "Saturday, March 15 2025")
	assert.Contains(t, out, "Kickoff")
	assert.Contains(t, out, "Acme: Scope  [pending]")

	out, err = run(t, "--config", conf, "day", "2025-03-15", "--type", "deadline")
	require.NoError(t, err)
	assert.NotContains(t, out, "Kickoff")

	_, err = run(t, "--config", conf, "day", "15/03/2025")
	assert.Error(t, err)
}

func TestMonthCommandRejectsBadMonth(t *testing.T) {
	conf := writeFixture(t)
	_, err := run(t, "--config", conf, "month", "--month", "March")
	assert.Error(t, err)

	out, err := run(t, "--config", conf, "month", "--month", "2025-03")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "March 2025\n"))
}

func TestImportThenExport(t *testing.T) {
	conf := writeFixture(t)
	icsPath := filepath.Join(filepath.Dir(conf), "retro.ics")
	require.NoError(t, os.WriteFile(icsPath, []byte(importICS), 0o600))

	out, err := run(t, "--config", conf, "import-ics", icsPath, "--from", "2025-03-01", "--to", "2025-03-31")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 events")

	out, err = run(t, "--config", conf, "stats")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Events 3  Approved meetings 2"), out)

	out, err = run(t, "--config", conf, "export-ics", "--month", "2025-03")
	require.NoError(t, err)
	assert.Contains(t, out, "UID:e1@teamcal")
	assert.Contains(t, out, "SUMMARY:Retro")

	_, err = run(t, "--config", conf, "import-ics", icsPath, "--from", "2025-03-31", "--to", "2025-03-01")
	assert.Error(t, err)
}

func TestApproveAndReject(t *testing.T) {
	conf := writeFixture(t)

	out, err := run(t, "--config", conf, "approve", "r1", "--by", "lee")
	require.NoError(t, err)
	assert.Contains(t, out, "r1 approved as event ")

	// Stop re-seeding so the approval sticks.
	raw, err := os.ReadFile(conf)
	require.NoError(t, err)
	var kept []string
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.Contains(line, "seed:") {
			kept = append(kept, line)
		}
	}
	require.NoError(t, os.WriteFile(conf, []byte(strings.Join(kept, "\n")), 0o600))

	out, err = run(t, "--config", conf, "stats")
	require.NoError(t, err)
	assert.Equal(t, "Events 3  Approved meetings 2  Upcoming deadlines 0  Pending requests 0\n", out)

	_, err = run(t, "--config", conf, "approve", "r1")
	assert.Error(t, err)
	_, err = run(t, "--config", conf, "reject", "missing", "--reason", "booked")
	assert.Error(t, err)
}
