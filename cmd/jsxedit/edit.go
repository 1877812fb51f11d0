package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/mutate"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/style"
)

var (
	editEID   string
	editProp  string
	editValue string
	editKind  string
	editWrite bool
)

var editCmd = &cobra.Command{
	Use:   "edit <file>",
	Short: "Apply one property change to a JSX file",
	Long: `Edit rewrites a single property of a stamped element, the same
splice an editor session commits after a debounced change. The element
is addressed by its data-eid marker:

  jsxedit edit Button.jsx --eid aaaa1111 --prop color --value '#10b981'`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editEID, "eid", "", "marker of the element to edit")
	editCmd.Flags().StringVar(&editProp, "prop", "", "property to change, e.g. color or textContent")
	editCmd.Flags().StringVar(&editValue, "value", "", "new value")
	editCmd.Flags().StringVar(&editKind, "kind", "", "edit kind: style, text or attribute (inferred when empty)")
	editCmd.Flags().BoolVarP(&editWrite, "write", "w", false, "rewrite the file in place instead of printing")
	_ = editCmd.MarkFlagRequired("eid")
	_ = editCmd.MarkFlagRequired("prop")
	_ = editCmd.MarkFlagRequired("value")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	source, err := readSource(args[0])
	if err != nil {
		return err
	}

	doc, err := jsx.Parse(source)
	if err != nil {
		return err
	}

	kind, err := resolveKind(editKind, editProp)
	if err != nil {
		return err
	}

	value := editValue
	if kind == mutate.KindStyle {
		value = style.Format(editProp, editValue)
	}

	next, changed, err := mutate.Apply(doc, jsx.EID(editEID), editProp, value, kind)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("no element with marker %q maps %s", editEID, editProp)
	}
	return writeResult(args[0], next.Source, editWrite)
}

// resolveKind infers the edit kind the way sessions do when the wire
// frame omits it: textContent is a text edit, everything else a style.
func resolveKind(name, property string) (mutate.Kind, error) {
	if name == "" {
		if property == "textContent" {
			return mutate.KindText, nil
		}
		return mutate.KindStyle, nil
	}
	kind, ok := mutate.ParseKind(name)
	if !ok {
		return 0, fmt.Errorf("unknown edit kind %q", name)
	}
	return kind, nil
}
