package model

import "time"

// Visibility levels stored in projects.visibility.  Tasks do not carry a
// visibility of their own; they inherit their project's.
const (
	VisibilityPrivate = "private"
	VisibilityTeam    = "team"
	VisibilityPublic  = "public"
)

// Project mirrors the `projects` table plus the member set loaded from
// `project_members`.  OwnerID, MemberIDs and Visibility together form the
// tuple the access policy evaluates.
type Project struct {
	ID          uint64    // projects.id
	OwnerID     uint64    // projects.owner_id
	Name        string    // projects.name
	Description string    // projects.description
	Visibility  string    // projects.visibility (private|team|public)
	MemberIDs   []uint64  // project_members.user_id rows for this project
	CreatedAt   time.Time // projects.created_at
	UpdatedAt   time.Time // projects.updated_at
}

// Task status values stored in tasks.status.
const (
	TaskStatusTodo  = "todo"
	TaskStatusDoing = "doing"
	TaskStatusDone  = "done"
)

// Task mirrors the `tasks` table.  A task belongs to exactly one project
// and is visible to whoever can see that project.
type Task struct {
	ID          uint64    // tasks.id
	ProjectID   uint64    // tasks.project_id
	Title       string    // tasks.title
	Description string    // tasks.description
	Status      string    // tasks.status (todo|doing|done)
	AssigneeID  *uint64   // tasks.assignee_id (nullable)
	CreatedAt   time.Time // tasks.created_at
	UpdatedAt   time.Time // tasks.updated_at
}
