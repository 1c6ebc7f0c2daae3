package backpack

import (
	"uniperp/internal/application/port"
	"uniperp/internal/infrastructure/venue"
)

// init() 自注册 Backpack venue factory
func init() {
	venue.Register(Name, func(s venue.Settings) (port.Venue, error) {
		return New(s.WSURL, s.RestURL), nil
	})
}
