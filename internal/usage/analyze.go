package usage

type symbolKey struct {
	module string
	name   string
}

// classified reports whether declarations of kind k get a usage row.
func classified(k DeclKind) bool {
	switch k {
	case DeclParam, DeclNet, DeclVar, DeclPort:
		return true
	}
	return false
}

// Analyze counts references per (module, name) and classifies every
// parameter, net, variable and port exactly once, in declaration order.
// Scoping is by exact name within the enclosing module.
func Analyze(decls []Declaration, refs []Reference) []SymbolUsage {
	type counts struct{ reads, writes int }
	byName := make(map[symbolKey]*counts)
	for _, r := range refs {
		k := symbolKey{r.Module, r.Name}
		c := byName[k]
		if c == nil {
			c = &counts{}
			byName[k] = c
		}
		if r.Kind == Write {
			c.writes++
		} else {
			c.reads++
		}
	}

	type seenKey struct {
		symbolKey
		kind DeclKind
	}
	seen := make(map[seenKey]bool)
	out := make([]SymbolUsage, 0, len(decls))
	for _, d := range decls {
		if !classified(d.Kind) {
			continue
		}
		sk := seenKey{symbolKey{d.Module, d.Name}, d.Kind}
		if seen[sk] {
			continue
		}
		seen[sk] = true

		var reads, writes int
		if c := byName[sk.symbolKey]; c != nil {
			reads, writes = c.reads, c.writes
		}
		out = append(out, SymbolUsage{
			Module:     d.Module,
			Name:       d.Name,
			Kind:       d.Kind,
			Class:      classify(reads, writes),
			Used:       reads+writes > 0,
			RefCount:   reads + writes,
			ReadCount:  reads,
			WriteCount: writes,
			Loc:        d.Loc,
		})
	}
	return out
}

func classify(reads, writes int) Class {
	switch {
	case reads == 0 && writes == 0:
		return Unused
	case reads == 0:
		return WriteOnly
	case writes == 0:
		return ReadOnly
	default:
		return ReadWrite
	}
}

// Symbols is Analyze over a collected result.
func (r *Result) Symbols() []SymbolUsage {
	return Analyze(r.Declarations, r.References)
}
