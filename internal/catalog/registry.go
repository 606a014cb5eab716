package catalog

// TypeRegistry maps type tags to entity constructors. The item store uses it
// to decode polymorphic payloads. Tags it does not know about resolve to nil:
// rows written by a newer build must read back as "absent", never as errors.
type TypeRegistry struct {
	factories map[string]func() Entity
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{factories: make(map[string]func() Entity)}
}

// NewDefaultRegistry returns a registry with all entity types this core
// persists.
func NewDefaultRegistry() *TypeRegistry {
	r := NewTypeRegistry()
	r.Register(TypeChannel, func() Entity { return &Channel{} })
	r.Register(TypeChannelFolderItem, func() Entity { return &ChannelFolderItem{} })
	r.Register(TypeChannelAudioItem, func() Entity { return &ChannelAudioItem{} })
	r.Register(TypeChannelVideoItem, func() Entity { return &ChannelVideoItem{} })
	return r
}

// Register adds a constructor for a type tag, replacing any existing one.
func (r *TypeRegistry) Register(tag string, factory func() Entity) {
	r.factories[tag] = factory
}

// Resolve returns a fresh entity for the tag, or nil if the tag is unknown.
func (r *TypeRegistry) Resolve(tag string) Entity {
	factory, ok := r.factories[tag]
	if !ok {
		return nil
	}
	return factory()
}
