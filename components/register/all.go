// Package register registers all components
package register

import (
	// register boards.
	_ "github.com/edss/rocket-sensors/components/board/fake"
	_ "github.com/edss/rocket-sensors/components/board/genericlinux"
	_ "github.com/edss/rocket-sensors/components/board/pi"
	// register sensors.
	_ "github.com/edss/rocket-sensors/components/sensor/bmp085"
	_ "github.com/edss/rocket-sensors/components/sensor/fake"
	_ "github.com/edss/rocket-sensors/components/sensor/hx711"
	_ "github.com/edss/rocket-sensors/components/sensor/mpu6050"
)
