package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
)

// scriptSuffixes maps the stage tag in "<id>.<tag>.py" to its stage.
var scriptSuffixes = []struct {
	tag   string
	stage protocol.Stage
}{
	{"raw", protocol.RawText},
	{"pp", protocol.PpText},
	{"cst", protocol.Cst},
	{"ast", protocol.Ast},
}

// PluginRoots returns the directories rule scripts are looked up in:
// plugin.root, then plugin.search_paths, or <config dir>/plugins when
// neither is set.
func (c *Config) PluginRoots() []string {
	var roots []string
	seen := map[string]bool{}
	add := func(p string) {
		p = filepath.Clean(c.abs(p))
		if !seen[p] {
			seen[p] = true
			roots = append(roots, p)
		}
	}
	if strings.TrimSpace(c.Plugin.Root) != "" {
		add(c.Plugin.Root)
	}
	for _, p := range c.Plugin.SearchPaths {
		if strings.TrimSpace(p) != "" {
			add(p)
		}
	}
	if len(roots) == 0 && c.Dir != "" {
		add(filepath.Join(c.Dir, "plugins"))
	}
	return roots
}

// resolveRules makes every script absolute and sets every stage.
func (c *Config) resolveRules() error {
	if err := c.checkPluginDirs(); err != nil {
		return err
	}
	roots := c.PluginRoots()
	for i := range c.Rules {
		r := &c.Rules[i]
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			return invalid("rule id cannot be empty")
		}
		script := strings.TrimSpace(r.Script)
		var err error
		if script == "" {
			script, err = deriveScript(r.ID, roots)
		} else {
			script, err = c.findScript(r.ID, script, roots)
		}
		if err != nil {
			return err
		}
		r.Script = script
		if r.Stage == "" {
			stage, err := inferStage(r.ID, script)
			if err != nil {
				return err
			}
			r.Stage = stage
		}
	}
	return nil
}

func (c *Config) checkPluginDirs() error {
	check := func(label, p string) error {
		p = c.abs(p)
		info, err := os.Stat(p)
		if err != nil {
			return invalid("%s not found: %s", label, p)
		}
		if !info.IsDir() {
			return invalid("%s is not a directory: %s", label, p)
		}
		return nil
	}
	if strings.TrimSpace(c.Plugin.Root) != "" {
		if err := check("plugin.root", c.Plugin.Root); err != nil {
			return err
		}
	}
	for _, p := range c.Plugin.SearchPaths {
		if err := check("plugin.search_paths entry", p); err != nil {
			return err
		}
	}
	return nil
}

// findScript resolves a configured script. Relative scripts are tried
// under each plugin root, then under the config directory.
func (c *Config) findScript(id, script string, roots []string) (string, error) {
	if filepath.IsAbs(script) {
		if fileExists(script) {
			return script, nil
		}
		return "", invalid("rule %s script not found: %s", id, script)
	}
	var probed []string
	for _, root := range roots {
		probed = append(probed, filepath.Join(root, script))
	}
	if c.Dir != "" {
		probed = append(probed, filepath.Join(c.Dir, script))
	}
	for _, p := range probed {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", invalid("rule %s script not found; searched %s", id, strings.Join(probed, ", "))
}

// deriveScript finds the single "<id>.<stage>.py" under the plugin roots.
func deriveScript(id string, roots []string) (string, error) {
	if len(roots) == 0 {
		return "", invalid("rule %s missing script; set plugin.root/search_paths or specify script explicitly", id)
	}
	var found []string
	names := map[string]bool{}
	for _, root := range roots {
		for _, s := range scriptSuffixes {
			name := fmt.Sprintf("%s.%s.py", id, s.tag)
			p := filepath.Join(root, name)
			if fileExists(p) && !names[name] {
				names[name] = true
				found = append(found, p)
			}
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return "", invalid("rule %s missing script and no file named %s.{raw,pp,cst,ast}.py exists under plugin roots", id, id)
	}
	sort.Strings(found)
	return "", invalid("rule %s matches multiple scripts %v; specify script explicitly", id, found)
}

// inferStage reads the stage from a "<name>.<raw|pp|cst|ast>.py" script.
func inferStage(id, script string) (protocol.Stage, error) {
	base := filepath.Base(script)
	if filepath.Ext(base) != ".py" {
		return "", invalid("rule %s missing stage and script %s must end with .py", id, base)
	}
	stem := strings.TrimSuffix(base, ".py")
	dot := strings.LastIndexByte(stem, '.')
	if dot < 0 {
		return "", invalid("rule %s missing stage and script %s lacks .<stage> suffix", id, base)
	}
	tag := stem[dot+1:]
	for _, s := range scriptSuffixes {
		if s.tag == tag {
			return s.stage, nil
		}
	}
	return "", invalid("rule %s missing stage and script %s has unsupported stage suffix %s", id, base, tag)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// ApplyOverrides applies --only and --disable. Unknown ids are an error.
func (c *Config) ApplyOverrides(only, disable []string) error {
	if len(only) == 0 && len(disable) == 0 {
		return nil
	}
	known := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		known[r.ID] = true
	}
	for _, id := range append(append([]string(nil), only...), disable...) {
		if !known[id] {
			return invalid("rule %s not found", id)
		}
	}
	if len(only) > 0 {
		keep := make(map[string]bool, len(only))
		for _, id := range only {
			keep[id] = true
		}
		for i := range c.Rules {
			c.Rules[i].Enabled = boolPtr(keep[c.Rules[i].ID])
		}
	}
	for _, id := range disable {
		for i := range c.Rules {
			if c.Rules[i].ID == id {
				c.Rules[i].Enabled = boolPtr(false)
			}
		}
	}
	return nil
}

// HasRules reports whether any rule, enabled or not, targets stage.
func (c *Config) HasRules(stage protocol.Stage) bool {
	for _, r := range c.Rules {
		if r.Stage == stage {
			return true
		}
	}
	return false
}

// EnabledRules returns the enabled rules of stage in config order.
func (c *Config) EnabledRules(stage protocol.Stage) []Rule {
	var out []Rule
	for _, r := range c.Rules {
		if r.Stage == stage && r.IsEnabled() {
			out = append(out, r)
		}
	}
	return out
}

// Command is the plugin command line for stage: cmd, args, then the
// enabled rule scripts.
func (c *Config) Command(stage protocol.Stage) []string {
	argv := append([]string{c.Plugin.Cmd}, c.Plugin.Args...)
	for _, r := range c.EnabledRules(stage) {
		argv = append(argv, r.Script)
	}
	return argv
}

// RuleIndex maps rule ids to their resolved entries.
func (c *Config) RuleIndex() map[string]Rule {
	idx := make(map[string]Rule, len(c.Rules))
	for _, r := range c.Rules {
		idx[r.ID] = r
	}
	return idx
}
