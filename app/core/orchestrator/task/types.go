package task

// Status is the Kanban column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusInReview, StatusCompleted}

func ParseStatus(value string) (Status, bool) {
	for _, s := range Statuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

func ParsePriority(value string) (Priority, bool) {
	for _, p := range Priorities {
		if string(p) == value {
			return p, true
		}
	}
	return "", false
}

// Task is a single owned task row. Timestamps are unix seconds; zero means
// unset for the nullable columns.
type Task struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Status           Status   `json:"status"`
	Priority         Priority `json:"priority"`
	OwnerID          int64    `json:"owner_id"`
	CreatedByID      int64    `json:"created_by_id"`
	AssignedToID     int64    `json:"assigned_to_id,omitempty"`
	ReviewerID       int64    `json:"reviewer_id,omitempty"`
	DueDate          int64    `json:"due_date,omitempty"`
	CompletedAt      int64    `json:"completed_at,omitempty"`
	BoardPosition    int64    `json:"board_position"`
	EstimatedMinutes int64    `json:"estimated_minutes,omitempty"`
	ActualMinutes    int64    `json:"actual_minutes,omitempty"`
	CreatedAt        int64    `json:"created_at"`
	UpdatedAt        int64    `json:"updated_at"`
}

// Summary is the compact shape embedded into classifier prompts and query
// responses.
type Summary struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
}

func (t Task) Summary() Summary {
	return Summary{ID: t.ID, Title: t.Title, Status: t.Status, Priority: t.Priority}
}

// Draft carries the fields accepted when creating a task. Status and Priority
// default to todo/medium when empty.
type Draft struct {
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Status           Status   `json:"status,omitempty"`
	Priority         Priority `json:"priority,omitempty"`
	AssignedToID     int64    `json:"assigned_to_id,omitempty"`
	ReviewerID       int64    `json:"reviewer_id,omitempty"`
	DueDate          int64    `json:"due_date,omitempty"`
	EstimatedMinutes int64    `json:"estimated_minutes,omitempty"`
}

// Changes is a partial update applied to an existing task. Nil fields are
// left untouched.
type Changes struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
}

func (c Changes) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Status == nil && c.Priority == nil
}

// Filter narrows a task listing. Zero values mean "no constraint".
type Filter struct {
	Status     Status
	Priority   Priority
	SearchTerm string
	Limit      int
}

// StatusCounts summarizes one owner's board.
type StatusCounts struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	InReview   int `json:"in_review"`
	Completed  int `json:"completed"`
}
