package app

// Compiled-in modules. Each registers itself with core in init.
import (
	_ "github.com/kaysia/kasa/internal/cron"
	_ "github.com/kaysia/kasa/internal/gateway"
	_ "github.com/kaysia/kasa/modules/store/memory"
	_ "github.com/kaysia/kasa/modules/store/sqlite"
)
