package auth

// Capability is a permission a requester holds over a resource.
type Capability uint8

const (
	CapOwner Capability = 1 << iota
	CapAdmin
)

// Capabilities is the set of capabilities a requester holds.
type Capabilities uint8

// CapabilitiesFor evaluates what id may do with a resource owned by ownerID.
func CapabilitiesFor(id Identity, ownerID string) Capabilities {
	var caps Capabilities
	if id.UserID != "" && id.UserID == ownerID {
		caps |= Capabilities(CapOwner)
	}
	if id.IsAdmin() {
		caps |= Capabilities(CapAdmin)
	}
	return caps
}

// Has reports whether c contains capability.
func (c Capabilities) Has(capability Capability) bool {
	return c&Capabilities(capability) != 0
}

// Any reports whether c contains at least one of required.
func (c Capabilities) Any(required ...Capability) bool {
	for _, r := range required {
		if c.Has(r) {
			return true
		}
	}
	return false
}
