// Package levels converts between nested list containers and flat value
// sequences annotated with repetition and definition levels.
//
// A repetition level of 0 starts a new top-level record. A level r > 0
// continues the list opened at chain depth r-1, closing and reopening
// every deeper list. A definition level below a leaf's maximum marks a
// null value, or an empty list when it is also below the maximum
// repetition level.
//
// For a leaf with maximum repetition level k, the nested form is a
// container of depth k whose elements are records. The flat form is a
// nullable depth 0 container plus one level entry per value.
package levels

import (
	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// Unpack flattens nested into a dense value sequence with parallel
// repetition and definition levels. An empty list emits one null
// placeholder whose definition level is the chain depth of that list.
//
// When node has no repeated ancestors nested is returned unchanged and
// both level slices are nil.
func Unpack(node *schema.Node, nested container.Container) (container.Container, []int, []int, error) {
	if node == nil || nested == nil {
		return nil, nil, nil, errors.New(errors.ErrorTypeValidation, "node and values are required")
	}
	maxRL := node.MaxRepetitionLevel()
	if maxRL == 0 {
		return nested, nil, nil, nil
	}
	if nested.Depth() != maxRL {
		return nil, nil, nil, errors.New(errors.ErrorTypeValidation, "nested depth does not match repetition level").
			WithDetail("path", node.Path()).
			WithDetail("depth", nested.Depth()).
			WithDetail("max_repetition_level", maxRL)
	}

	u := &unpacker{
		maxRL: maxRL,
		maxDL: node.MaxDefinitionLevel(),
		dense: container.MustNew(node.Type(), true, 0, nested.Len()),
		rls:   make([]int, 0, nested.Len()),
		dls:   make([]int, 0, nested.Len()),
	}
	for i := 0; i < nested.Len(); i++ {
		if err := u.walk(nested.Get(i).(container.Container), 0, 0); err != nil {
			return nil, nil, nil, errors.Wrap(err, errors.ErrorTypeData, "cannot unpack record").
				WithDetail("path", node.Path()).
				WithDetail("record", i)
		}
	}
	return u.dense, u.rls, u.dls, nil
}

type unpacker struct {
	maxRL, maxDL int
	dense        container.Container
	rls, dls     []int
}

// walk emits the list at chain depth d. rl is the level of its first
// entry; every following entry continues this list at level d+1.
func (u *unpacker) walk(list container.Container, d, rl int) error {
	if list.Len() == 0 {
		return u.emit(nil, rl, d)
	}
	for j := 0; j < list.Len(); j++ {
		r := rl
		if j > 0 {
			r = d + 1
		}
		if d < u.maxRL-1 {
			if err := u.walk(list.Get(j).(container.Container), d+1, r); err != nil {
				return err
			}
			continue
		}
		v := list.Get(j)
		dl := u.maxDL
		if v == nil {
			dl = u.maxRL
		}
		if err := u.emit(v, r, dl); err != nil {
			return err
		}
	}
	return nil
}

func (u *unpacker) emit(v any, rl, dl int) error {
	if err := u.dense.Append(v); err != nil {
		return err
	}
	u.rls = append(u.rls, rl)
	u.dls = append(u.dls, dl)
	return nil
}

// Pack regroups flat values into nested lists in one left-to-right scan.
// It keeps one open list per chain depth; a level rl below the maximum
// allocates fresh lists for depths rl and deeper, links each into the
// next shallower one (depth 0 into the result) and appends the value to
// the deepest list.
//
// dls may be nil. When given, an entry whose definition level d is below
// the maximum repetition level opens lists only down to depth d and adds
// no value, which restores empty lists.
//
// When node has no repeated ancestors values is returned unchanged.
func Pack(node *schema.Node, values container.Container, rls, dls []int) (container.Container, error) {
	if node == nil || values == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "node and values are required")
	}
	maxRL := node.MaxRepetitionLevel()
	if maxRL == 0 {
		return values, nil
	}
	if len(rls) != values.Len() {
		return nil, levelError(node, "repetition level count does not match value count").
			WithDetail("levels", len(rls)).
			WithDetail("values", values.Len())
	}
	if dls != nil && len(dls) != len(rls) {
		return nil, levelError(node, "definition level count does not match repetition level count").
			WithDetail("definition_levels", len(dls)).
			WithDetail("repetition_levels", len(rls))
	}

	result := container.MustNew(node.Type(), node.Nullable(), maxRL, CountRecords(rls))
	chain := make([]container.Container, maxRL)
	// deepest chain depth that accepts continuations, -1 before the first record
	open := -1

	for i, rl := range rls {
		if rl < 0 || rl > maxRL {
			return nil, levelError(node, "repetition level out of range").
				WithDetail("index", i).
				WithDetail("level", rl)
		}
		if rl > open+1 {
			return nil, levelError(node, "repetition level continues a list that is not open").
				WithDetail("index", i).
				WithDetail("level", rl)
		}
		dl := maxRL
		if dls != nil {
			dl = dls[i]
			if dl < rl {
				return nil, levelError(node, "definition level below repetition level").
					WithDetail("index", i).
					WithDetail("repetition_level", rl).
					WithDetail("definition_level", dl)
			}
		}

		if rl < maxRL {
			top := maxRL - 1
			if dl < maxRL {
				top = dl
			}
			for d := rl; d <= top; d++ {
				chain[d] = container.MustNew(node.Type(), node.Nullable(), maxRL-1-d, 0)
				var err error
				if d == 0 {
					err = result.Append(chain[0])
				} else {
					err = chain[d-1].Append(chain[d])
				}
				if err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot link list").
						WithDetail("path", node.Path())
				}
			}
			if dl < maxRL {
				// the list at depth dl stays empty
				open = dl - 1
				continue
			}
			open = maxRL - 1
		}

		if err := chain[maxRL-1].Append(values.Get(i)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot append value").
				WithDetail("path", node.Path()).
				WithDetail("index", i)
		}
	}
	return result, nil
}

// CountRecords returns the number of top-level records in a repetition
// level sequence.
func CountRecords(rls []int) int {
	n := 0
	for _, rl := range rls {
		if rl == 0 {
			n++
		}
	}
	return n
}

func levelError(node *schema.Node, msg string) *errors.Error {
	return errors.New(errors.ErrorTypeData, msg).WithDetail("path", node.Path())
}
