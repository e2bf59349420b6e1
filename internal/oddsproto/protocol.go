package oddsproto

// Version is the odds feed protocol version.
const Version = "0.1"

// Client -> Server. First message on the feed connection; may be re-sent to
// follow another location.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Location filters updates; empty follows the player's current location.
	Location       string `json:"location,omitempty"`
	IncludeBlocked bool   `json:"include_blocked,omitempty"`
}

// Client -> Server. Changes the game state the engine runs against.
type ControlMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Op              string `json:"op"`

	TimeOfDay int    `json:"time_of_day,omitempty"`
	Weather   string `json:"weather,omitempty"`
	Location  string `json:"location,omitempty"`
	Tile      *Tile  `json:"tile,omitempty"`
	Days      int    `json:"days,omitempty"`
	Rod       string `json:"rod,omitempty"`
	Bait      string `json:"bait,omitempty"`
}

// Control ops.
const (
	OpSetTime      = "SET_TIME"
	OpSetWeather   = "SET_WEATHER"
	OpMove         = "MOVE"
	OpAdvanceDays  = "ADVANCE_DAYS"
	OpEquip        = "EQUIP"
	OpResetStats   = "RESET_STATS"
	OpRecomputeNow = "RECOMPUTE"
)

type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Server -> Client. Reply to a control message.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Op              string `json:"op"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Server -> Client. Sent every tick for the subscribed location.
type OddsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Location  string `json:"location"`
	Date      string `json:"date"`
	TimeOfDay int    `json:"time_of_day"`
	Weather   string `json:"weather"`

	Cumulative float64 `json:"cumulative"`
	Converged  bool    `json:"converged"`
	Casts      int     `json:"casts"`
	Failures   int     `json:"failures,omitempty"`

	Entries []OddsEntry    `json:"entries"`
	Blocked []BlockedEntry `json:"blocked,omitempty"`
}

type OddsEntry struct {
	ID                string  `json:"id"`
	DisplayName       string  `json:"display_name"`
	HookChancePercent float64 `json:"hook_chance_percent"`
	OnlyNonFish       bool    `json:"only_non_fish"`
	Samples           int     `json:"samples"`
	LastDayThisSeason string  `json:"last_day_this_season,omitempty"`
}

type BlockedEntry struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Reasons     []string `json:"reasons"`
	Requirement string   `json:"requirement,omitempty"`
	NextDate    string   `json:"next_date,omitempty"`
}

// HTTP response for GET /v1/status.
type StatusResponse struct {
	ProtocolVersion string            `json:"protocol_version"`
	Tick            uint64            `json:"tick"`
	TickRateHz      int               `json:"tick_rate_hz"`
	Date            string            `json:"date"`
	TimeOfDay       int               `json:"time_of_day"`
	Weather         string            `json:"weather"`
	Location        string            `json:"location"`
	Locations       []string          `json:"locations"`
	CatalogDigests  map[string]string `json:"catalog_digests"`
	Subscribers     int               `json:"subscribers"`
}
