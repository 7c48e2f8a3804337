package model

import (
	"time"
)

// Collection names as stored in the document database.
const (
	CollectionEvents          = "events"
	CollectionTasks           = "tasks"
	CollectionMeetingRequests = "meetingRequests"
	CollectionClients         = "clients"
	CollectionUsers           = "users"
	CollectionProjects        = "projects"
)

// Event is a calendar entry created by staff: meetings, deadlines, reminders.
// Type, Status and Priority are lowercase once normalized.
type Event struct {
	ID          string
	Title       string
	Type        string
	Status      string
	Priority    string
	Date        string // YYYY-MM-DD, calendar-local
	Time        string // HH:MM, may be empty
	Duration    int    // minutes
	ClientID    string
	ClientName  string
	AttendeeIDs []string
	Attendees   []string
	Location    string
	Description string
	Objectives  []Objective

	CancelReason string
	CancelledBy  string
	CancelledAt  time.Time
	CompletedAt  time.Time
	CreatedAt    time.Time
	CreatedBy    string
}

type Objective struct {
	ID        string
	Text      string
	Completed bool
}

type AssigneeType string

const (
	AssigneeUser   AssigneeType = "user"
	AssigneeClient AssigneeType = "client"
)

type TaskStatus string

const (
	TaskToDo       TaskStatus = "To-Do"
	TaskInProgress TaskStatus = "In Progress"
	TaskDone       TaskStatus = "Done"
)

// Task is the store-owned work item. A recurring template has IsRecurring set
// and no ParentRecurringTaskID; generated children point back at it.
type Task struct {
	ID           string
	Title        string
	Description  string
	ProjectID    string
	AssigneeID   string
	AssigneeType AssigneeType
	Status       TaskStatus
	Priority     string // Low|Medium|High as stored
	DueDate      time.Time
	CreatedAt    time.Time
	CompletedAt  time.Time
	Archived     bool

	IsRecurring           bool
	Recurrence            *RecurrencePattern
	ParentRecurringTaskID string
	OccurrenceCount       int
}

// IsRecurringTemplate reports whether t is the root of a recurring series.
func (t Task) IsRecurringTemplate() bool {
	return t.IsRecurring && t.ParentRecurringTaskID == ""
}

// SeriesID is the id of the root task of t's recurring series.
func (t Task) SeriesID() string {
	if t.ParentRecurringTaskID != "" {
		return t.ParentRecurringTaskID
	}
	return t.ID
}

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// RecurrencePattern describes how a recurring task repeats. Zero values mean
// "not set": Interval 0 is treated as 1, a zero EndDate never ends and
// MaxOccurrences 0 is unbounded.
type RecurrencePattern struct {
	Frequency      Frequency
	Interval       int
	DaysOfWeek     []time.Weekday
	DayOfMonth     int
	EndDate        time.Time
	MaxOccurrences int
	SkipWeekends   bool
}

type MeetingRequestStatus string

const (
	RequestPending  MeetingRequestStatus = "pending"
	RequestApproved MeetingRequestStatus = "approved"
	RequestRejected MeetingRequestStatus = "rejected"
)

// MeetingRequest is a client's ask for a meeting slot, awaiting staff review.
type MeetingRequest struct {
	ID              string
	ClientID        string
	ClientName      string
	CompanyName     string
	RequestedDate   string // YYYY-MM-DD
	RequestedTime   string // HH:MM
	Duration        int
	Purpose         string
	Priority        string
	Status          MeetingRequestStatus
	RequestedAt     time.Time
	RejectionReason string
	RejectedBy      string
	RejectedAt      time.Time
	Email           string
	Phone           string
}

type Client struct {
	ID          string
	ClientName  string
	CompanyName string
	Email       string
}

// Resource is a staff user that can attend events or be assigned tasks.
type Resource struct {
	ID    string
	Name  string
	Email string
	Role  string
}

type Project struct {
	ID               string
	Name             string
	ProjectManagerID string
}

// Stats are the calendar header counters, computed over unfiltered data.
type Stats struct {
	TotalEvents       int `json:"totalEvents"`
	ApprovedMeetings  int `json:"approvedMeetings"`
	UpcomingDeadlines int `json:"upcomingDeadlines"`
	PendingRequests   int `json:"pendingRequests"`
}
