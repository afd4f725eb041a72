// ABOUTME: Database operations for the local task list
// ABOUTME: Plain CRUD over the tasks table
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/daybook/models"
)

// CreateTask inserts a new task.
func CreateTask(db *sql.DB, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := db.Exec(`
		INSERT INTO tasks (id, title, notes, done, due_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, task.ID.String(), task.Title, task.Notes, task.Done, task.DueAt, task.CreatedAt, task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// ListTasks returns all tasks, open ones first, then by due date.
func ListTasks(db *sql.DB) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT id, title, notes, done, due_at, created_at, updated_at
		FROM tasks
		ORDER BY done ASC, due_at IS NULL, due_at ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []models.Task
	for rows.Next() {
		var task models.Task
		var id string
		var dueAt sql.NullTime

		err := rows.Scan(&id, &task.Title, &task.Notes, &task.Done, &dueAt, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		task.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse task id: %w", err)
		}
		if dueAt.Valid {
			task.DueAt = &dueAt.Time
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// SetTaskDone marks a task done or not done.
func SetTaskDone(db *sql.DB, id uuid.UUID, done bool) error {
	result, err := db.Exec(`
		UPDATE tasks SET done = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, done, id.String())
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check task update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %s", id)
	}

	return nil
}
