package request

// RoundsQuery GET /api/v1/rounds?limit=
type RoundsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// RoundURI GET /api/v1/rounds/:id
type RoundURI struct {
	ID string `uri:"id" binding:"required,numeric"`
}

// PlayerURI GET /api/v1/players/:overlay，可以不带 0x
type PlayerURI struct {
	Overlay string `uri:"overlay" binding:"required,hexadecimal"`
}
