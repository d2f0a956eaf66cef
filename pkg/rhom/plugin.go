package rhom

import "context"

// Plugin is a capability installed on an entity type.
//
// Install subscribes the plugin's listeners and registers any accessors.
// It runs once, after the plugin's name has been recorded on the type.
type Plugin interface {
	Name() string
	Description() string
	Install(d *Descriptor) error
}

// PluginInfo is a registration record, as reported by Descriptor.Plugins.
type PluginInfo struct {
	Name        string
	Description string
}

// Accessor is a named operation a plugin adds to a type, such as
// "getByEmail" or "getAuthor". The argument's meaning is accessor-specific.
type Accessor func(ctx context.Context, arg any) *Future[any]
