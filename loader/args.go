package loader

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ArgSpec declares one command-line option for the pipeline argument group.
// Default's concrete type selects the flag type at registration.
type ArgSpec struct {
	Name    string
	Default interface{}
	Usage   string
}

// synonyms maps an option name to the alternative spellings that count as
// the same destination when merging.
var synonyms = map[string][]string{
	"separ-val": {"dali-separ-val"},
}

// areSynonyms reports whether two option names address the same destination.
func areSynonyms(a, b string) bool {
	if a == b {
		return true
	}
	for _, s := range synonyms[a] {
		if s == b {
			return true
		}
	}
	for _, s := range synonyms[b] {
		if s == a {
			return true
		}
	}
	return false
}

// DefaultArgs is the option group every pipeline consumer gets unless a
// task overrides an option (or one of its synonyms).
func DefaultArgs() []ArgSpec {
	return []ArgSpec{
		{Name: "separ-val", Default: false, Usage: "each process performs independent validation on the whole val set"},
		{Name: "data-threads", Default: 3, Usage: "number of decode threads per GPU"},
		{Name: "prefetch-queue", Default: 3, Usage: "prefetch queue depth"},
		{Name: "decoder-memory-padding", Default: 16, Usage: "decoder scratch memory padding (in MB)"},
		{Name: "num-examples", Default: -1, Usage: `number of training examples to use, "-1" means the full training set`},
		{Name: "reader-name", Default: "", Usage: "reader name"},
	}
}

// MergeArgs folds defaults into the caller's task options. A default whose
// destination matches a task option (directly or through a synonym) is
// dropped, so exactly one option per destination survives and the caller's
// wins. A fresh slice is returned; neither input is modified.
func MergeArgs(taskArgs, defaults []ArgSpec) []ArgSpec {
	merged := make([]ArgSpec, 0, len(taskArgs)+len(defaults))
	merged = append(merged, taskArgs...)
	for _, def := range defaults {
		taken := false
		for _, arg := range taskArgs {
			if areSynonyms(def.Name, arg.Name) {
				taken = true
				break
			}
		}
		if !taken {
			merged = append(merged, def)
		}
	}
	return merged
}

// RegisterFlags adds every spec to the flag set, typed by its default.
func RegisterFlags(fs *pflag.FlagSet, specs []ArgSpec) error {
	for _, spec := range specs {
		switch def := spec.Default.(type) {
		case bool:
			fs.Bool(spec.Name, def, spec.Usage)
		case int:
			fs.Int(spec.Name, def, spec.Usage)
		case float64:
			fs.Float64(spec.Name, def, spec.Usage)
		case string:
			fs.String(spec.Name, def, spec.Usage)
		default:
			return fmt.Errorf("loader: option %q has unsupported default type %T", spec.Name, spec.Default)
		}
	}
	return nil
}
