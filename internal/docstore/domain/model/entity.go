package model

// Entity record types. Field tags match the physical column names so a Snapshot can be
// decoded with DataTo. Timestamps are kept as the strings the store returns.

// Satellite is a row of the satellites table.
type Satellite struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	NoradID       string  `json:"norad_id,omitempty"`
	Status        string  `json:"status"`
	OrbitType     string  `json:"orbit_type,omitempty"`
	AltitudeKm    float64 `json:"altitude_km,omitempty"`
	InclinationDg float64 `json:"inclination_deg,omitempty"`
	MissionID     int64   `json:"mission_id,omitempty"`
	LaunchDate    string  `json:"launch_date,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// GroundStation is a row of the ground_stations table.
type GroundStation struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Location  string  `json:"location,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// Command is a row of the commands table.
type Command struct {
	ID          int64  `json:"id"`
	SatelliteID int64  `json:"satellite_id"`
	UserID      int64  `json:"user_id"`
	CommandType string `json:"command_type"`
	Parameters  string `json:"parameters,omitempty"`
	Status      string `json:"status"`
	ExecutedAt  string `json:"executed_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Anomaly is a row of the anomalies table.
type Anomaly struct {
	ID          int64  `json:"id"`
	SatelliteID int64  `json:"satellite_id"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	ResolvedAt  string `json:"resolved_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Mission is a row of the missions table.
type Mission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// User is a row of the users table.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// TelemetryPoint is a row of the telemetry table.
type TelemetryPoint struct {
	ID          int64   `json:"id"`
	SatelliteID int64   `json:"satellite_id"`
	Parameter   string  `json:"parameter"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit,omitempty"`
	Timestamp   string  `json:"timestamp"`
	CreatedAt   string  `json:"created_at,omitempty"`
}
