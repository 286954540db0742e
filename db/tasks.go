package db

import (
	"database/sql"
	"time"
)

// Task is a periodic job dispatched by the scheduler
type Task struct {
	ID              int64
	Name            string
	Prompt          string
	IntervalSeconds int
	ChannelID       string
	WorkingDir      string
	Enabled         bool
	NextRunAt       string
	LastRunAt       string
	CreatedAt       string
}

const taskColumns = `id, name, prompt, interval_seconds, channel_id, working_dir, enabled, next_run_at, last_run_at, created_at`

func scanTask(rows *sql.Rows) (Task, error) {
	var t Task
	var workingDir, lastRunAt sql.NullString
	var enabled int
	err := rows.Scan(&t.ID, &t.Name, &t.Prompt, &t.IntervalSeconds, &t.ChannelID, &workingDir, &enabled, &t.NextRunAt, &lastRunAt, &t.CreatedAt)
	t.WorkingDir = workingDir.String
	t.LastRunAt = lastRunAt.String
	t.Enabled = enabled != 0
	return t, err
}

// CreateTask inserts a new task. When runImmediately is true the first
// firing is due now; otherwise it is due one interval from now.
// Duplicate names fail with a UNIQUE constraint error.
func CreateTask(name, prompt string, intervalSeconds int, channelID, workingDir string, runImmediately bool) (int64, error) {
	now := time.Now()
	nextRun := now
	if !runImmediately {
		nextRun = now.Add(time.Duration(intervalSeconds) * time.Second)
	}

	res, err := Run(
		`INSERT INTO tasks (name, prompt, interval_seconds, channel_id, working_dir, enabled, next_run_at, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		name, prompt, intervalSeconds, channelID, workingDir, FormatTime(nextRun), FormatTime(now),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTask returns one task by id, or nil
func GetTask(id int64) (*Task, error) {
	tasks, err := Select(
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`,
		[]QueryParam{id},
		scanTask,
	)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

// ListTasks returns all tasks ordered by creation
func ListTasks() ([]Task, error) {
	return Select(`SELECT `+taskColumns+` FROM tasks ORDER BY id`, nil, scanTask)
}

// GetDueTasks returns enabled tasks whose next run is at or before now
func GetDueTasks(now time.Time) ([]Task, error) {
	return Select(
		`SELECT `+taskColumns+` FROM tasks
		 WHERE enabled = 1 AND next_run_at <= ?
		 ORDER BY next_run_at`,
		[]QueryParam{FormatTime(now)},
		scanTask,
	)
}

// AdvanceTaskNextRun atomically moves next_run_at one interval forward and
// stamps last_run_at. Called BEFORE dispatch so the master loop cannot
// double-fire a task within one interval.
func AdvanceTaskNextRun(id int64, intervalSeconds int) error {
	now := time.Now()
	_, err := Run(
		`UPDATE tasks SET next_run_at = ?, last_run_at = ? WHERE id = ?`,
		FormatTime(now.Add(time.Duration(intervalSeconds)*time.Second)), FormatTime(now), id,
	)
	return err
}

// UpdateTask applies a partial update. Nil fields are left unchanged.
// Returns whether the task existed.
func UpdateTask(id int64, enabled *bool, prompt *string, intervalSeconds *int, workingDir *string) (bool, error) {
	task, err := GetTask(id)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	if enabled != nil {
		task.Enabled = *enabled
	}
	if prompt != nil {
		task.Prompt = *prompt
	}
	if intervalSeconds != nil {
		task.IntervalSeconds = *intervalSeconds
	}
	if workingDir != nil {
		task.WorkingDir = *workingDir
	}

	enabledInt := 0
	if task.Enabled {
		enabledInt = 1
	}
	_, err = Run(
		`UPDATE tasks SET enabled = ?, prompt = ?, interval_seconds = ?, working_dir = ? WHERE id = ?`,
		enabledInt, task.Prompt, task.IntervalSeconds, task.WorkingDir, id,
	)
	return true, err
}

// DeleteTask removes a task. Returns whether a row existed.
func DeleteTask(id int64) (bool, error) {
	res, err := Run(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
