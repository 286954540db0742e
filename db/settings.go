package db

import "database/sql"

// GetSetting returns the value for a key, or the empty string if unset
func GetSetting(key string) (string, error) {
	value, err := SelectOne(
		`SELECT value FROM settings WHERE key = ?`,
		[]QueryParam{key},
		func(row *sql.Row) (string, error) {
			var v string
			err := row.Scan(&v)
			return v, err
		},
	)
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

// SetSetting upserts a key/value pair
func SetSetting(key, value string) error {
	_, err := Run(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// DeleteSetting removes a key
func DeleteSetting(key string) error {
	_, err := Run(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// GetAllSettings returns every key/value pair
func GetAllSettings() (map[string]string, error) {
	type kv struct{ key, value string }
	rows, err := Select(
		`SELECT key, value FROM settings`,
		nil,
		func(rows *sql.Rows) (kv, error) {
			var p kv
			err := rows.Scan(&p.key, &p.value)
			return p, err
		},
	)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(rows))
	for _, p := range rows {
		result[p.key] = p.value
	}
	return result, nil
}
