package levels

import (
	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// PackDefinitions expands the present values into a sequence with one
// entry per definition level, inserting nil wherever the level is below
// the node's maximum definition level. The result is always nullable.
func PackDefinitions(node *schema.Node, values container.Container, dls []int) (container.Container, error) {
	if node == nil || values == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "node and values are required")
	}
	maxDL := node.MaxDefinitionLevel()
	out := container.MustNew(node.Type(), true, 0, len(dls))

	next := 0
	for i, dl := range dls {
		if dl < 0 || dl > maxDL {
			return nil, levelError(node, "definition level out of range").
				WithDetail("index", i).
				WithDetail("level", dl)
		}
		if dl < maxDL {
			_ = out.Append(nil)
			continue
		}
		if next >= values.Len() {
			return nil, levelError(node, "definition levels reference more values than present").
				WithDetail("values", values.Len())
		}
		if err := out.Append(values.Get(next)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot append value").
				WithDetail("path", node.Path()).
				WithDetail("index", next)
		}
		next++
	}
	if next != values.Len() {
		return nil, levelError(node, "values not referenced by definition levels").
			WithDetail("values", values.Len()).
			WithDetail("referenced", next)
	}
	return out, nil
}

// UnpackDefinitions is the inverse of PackDefinitions: it keeps only the
// entries defined at the node's maximum definition level. When dls is nil
// the levels are derived from the values, nil meaning undefined.
func UnpackDefinitions(node *schema.Node, dense container.Container, dls []int) (container.Container, []int, error) {
	if node == nil || dense == nil {
		return nil, nil, errors.New(errors.ErrorTypeValidation, "node and values are required")
	}
	maxDL := node.MaxDefinitionLevel()
	if dls == nil {
		dls = make([]int, dense.Len())
		for i := range dls {
			dls[i] = maxDL
			if dense.Get(i) == nil {
				dls[i] = node.MaxRepetitionLevel()
			}
		}
	}
	if len(dls) != dense.Len() {
		return nil, nil, levelError(node, "definition level count does not match value count").
			WithDetail("levels", len(dls)).
			WithDetail("values", dense.Len())
	}

	out := container.MustNew(node.Type(), node.Nullable(), 0, dense.Len())
	for i, dl := range dls {
		if dl < maxDL {
			continue
		}
		if err := out.Append(dense.Get(i)); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "cannot append value").
				WithDetail("path", node.Path()).
				WithDetail("index", i)
		}
	}
	return out, dls, nil
}
