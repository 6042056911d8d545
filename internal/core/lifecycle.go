package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Optional module hooks, called in this order:
//
//	Configure → Provision → Validate → Start … Stop
//
// A module implements only the hooks it needs. The store modules, for
// instance, open their database in Provision and have no Start.

// Configurable modules decode their section of the modules map. Configure
// is skipped when the config has no entry for the module.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, open resources and publish or look
// up services on the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their provisioned settings. Validate must not
// have side effects.
type Validator interface {
	Validate() error
}

// Starter modules launch listeners or schedules once every module has been
// provisioned. Start must not block.
type Starter interface {
	Start() error
}

// Stopper modules release what they hold. Modules are stopped in reverse
// start order.
type Stopper interface {
	Stop(ctx context.Context) error
}
