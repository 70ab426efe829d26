package app

import (
	"github.com/otpgate/otpgate/internal/account"
)

// initModules registers feature modules on the router. Each module guards
// itself behind a config flag so deployments can run a subset.
func (a *App) initModules() {
	if !a.config.GetBool("modules.account.enabled") {
		return
	}

	err := account.New(account.Dependency{
		Config:      a.config,
		Instrument:  a.ins,
		UID:         a.uid,
		PassHash:    a.passHash,
		CodeHash:    a.codeHash,
		Clock:       a.clock,
		Validator:   a.validator,
		Router:      a.router,
		DBConn:      a.dbConn,
		Idempotency: a.idemp,
		Messaging:   a.messaging,
		Storage:     a.storage,
		Mail:        a.mail,
		SMS:         a.sms,
		Goroutine:   a.goroutine,
		JWT:         a.jwt,
	})
	if err != nil {
		fatal("wiring account module", err)
	}
}
