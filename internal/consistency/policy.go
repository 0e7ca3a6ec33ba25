// ABOUTME: Static mapping from statement kind to the replica agreement it requires
// ABOUTME: Consulted by every store call; defaults can be overridden from config

package consistency

import (
	"fmt"
	"sort"
	"strings"
)

// Level is how many replicas must acknowledge a read or write.
type Level int

const (
	// One waits for a single replica.
	One Level = iota + 1
	// Quorum waits for a majority of replicas.
	Quorum
	// All waits for every replica.
	All
)

func (l Level) String() string {
	switch l {
	case One:
		return "one"
	case Quorum:
		return "quorum"
	case All:
		return "all"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "one":
		return One, nil
	case "quorum":
		return Quorum, nil
	case "all":
		return All, nil
	default:
		return 0, fmt.Errorf("unknown consistency level %q", s)
	}
}

// Operation identifies a kind of store statement.
type Operation string

const (
	AccountReserveUsername Operation = "account.reserve_username"
	AccountConfirmID       Operation = "account.confirm_id"
	AccountRepairID        Operation = "account.repair_id"
	AccountLogin           Operation = "account.login"
	AccountLookup          Operation = "account.lookup"

	ChannelCreate Operation = "channel.create"
	ChannelLookup Operation = "channel.lookup"
	ChannelList   Operation = "channel.list"

	MessageCreate        Operation = "message.create"
	MessageAppendHistory Operation = "message.append_history"
	MessageHistory       Operation = "message.history"

	ConfigCreate Operation = "config.create"
	ConfigRead   Operation = "config.read"
)

// defaults mirrors the levels the data service has always run with: account
// uniqueness is linearizable across the whole cluster, entity id uniqueness
// needs a quorum, and reads plus the denormalized history write tolerate a
// single replica.
var defaults = map[Operation]Level{
	AccountReserveUsername: All,
	AccountConfirmID:       All,
	AccountRepairID:        All,
	AccountLogin:           All,
	AccountLookup:          One,

	ChannelCreate: Quorum,
	ChannelLookup: One,
	ChannelList:   One,

	MessageCreate:        Quorum,
	MessageAppendHistory: One,
	MessageHistory:       One,

	ConfigCreate: Quorum,
	ConfigRead:   One,
}

// Operations returns every known operation, sorted by name.
func Operations() []Operation {
	ops := make([]Operation, 0, len(defaults))
	for op := range defaults {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Policy resolves the level for each operation. The zero value is not usable;
// construct with Default or NewPolicy. A Policy is read-only after construction.
type Policy struct {
	levels map[Operation]Level
}

// Default returns the built-in policy.
func Default() *Policy {
	p, _ := NewPolicy(nil)
	return p
}

// NewPolicy builds a policy from the defaults with the given overrides applied.
// Override keys are operation names (e.g. "account.login") and values are level
// names ("one", "quorum", "all").
func NewPolicy(overrides map[string]string) (*Policy, error) {
	levels := make(map[Operation]Level, len(defaults))
	for op, lvl := range defaults {
		levels[op] = lvl
	}

	for name, raw := range overrides {
		op := Operation(name)
		if _, ok := defaults[op]; !ok {
			return nil, fmt.Errorf("unknown operation %q", name)
		}
		lvl, err := ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("operation %q: %w", name, err)
		}
		levels[op] = lvl
	}

	return &Policy{levels: levels}, nil
}

// Level returns the level for op. Unknown operations get One.
func (p *Policy) Level(op Operation) Level {
	if lvl, ok := p.levels[op]; ok {
		return lvl
	}
	return One
}
