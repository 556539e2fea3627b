package cmd

import (
	"path"
	"strings"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/ozkatz/zipmeta/pkg/zipfile"
)

var treeCmd = &cobra.Command{
	Use:     "tree",
	Short:   "Print the directory hierarchy recorded in the archive",
	Example: "zipmeta tree s3://example-bucket/path/to/archive.zip",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		files := mustGetEntries(cmd.Context(), args[0])
		_, _ = cmd.OutOrStdout().Write([]byte(renderTree(args[0], files)))
	},
}

// renderTree draws every entry under its parent directory entry. Entries whose
// parent has no entry of its own are drawn at the top level with their full path.
func renderTree(rootLabel string, files []*zipfile.Entry) string {
	byPath := make(map[string]*zipfile.Entry, len(files))
	isChild := make(map[string]bool)
	for _, f := range files {
		byPath[f.Path()] = f
		for _, c := range f.Children() {
			isChild[c] = true
		}
	}
	root := gotree.New(rootLabel)
	for _, f := range files {
		if isChild[f.Path()] {
			continue
		}
		addNode(root, f, f.Path(), byPath)
	}
	return root.Print()
}

func addNode(parent gotree.Tree, f *zipfile.Entry, label string, byPath map[string]*zipfile.Entry) {
	node := parent.Add(label)
	for _, c := range f.Children() {
		child, ok := byPath[c]
		if !ok {
			continue
		}
		addNode(node, child, nodeLabel(child), byPath)
	}
}

func nodeLabel(f *zipfile.Entry) string {
	name := path.Base(strings.TrimSuffix(f.Path(), "/"))
	if f.IsDir() {
		name += "/"
	}
	return name
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
