package extended

import (
	"uniperp/internal/application/port"
	"uniperp/internal/infrastructure/venue"
)

// init() 自注册 Extended venue factory, 避免在装配代码中硬编码
func init() {
	venue.Register(Name, func(s venue.Settings) (port.Venue, error) {
		return New(s.WSURL, s.RestURL, s.APIKey, s.APISecret), nil
	})
}
