package accessctl

// Principal identifies whose rights on a path a rule changes.
type Principal uint8

const (
	Owner Principal = iota
	Group
	Others
)

func (p Principal) String() string {
	switch p {
	case Owner:
		return "Owner"
	case Group:
		return "Group"
	}
	return "Others"
}

// Rights is a bit set of filesystem rights.
type Rights uint8

const (
	Read Rights = 1 << iota
	Write
)

func (r Rights) String() string {
	switch r {
	case Read:
		return "Read"
	case Write:
		return "Write"
	case Read | Write:
		return "Read|Write"
	}
	return "None"
}

// Access selects whether a rule allows or denies its rights.
type Access uint8

const (
	Allow Access = iota
	Deny
)

func (a Access) String() string {
	if a == Deny {
		return "Deny"
	}
	return "Allow"
}

// Controller adjusts access rights on the directory backing a key store.
// Controller failures are reported to the caller and never affect the
// outcome of key operations.
type Controller interface {
	Grant(path string, p Principal, r Rights, a Access) error
	Revoke(path string, p Principal, r Rights, a Access) error
}
