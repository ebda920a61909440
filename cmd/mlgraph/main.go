// Package main provides the mlgraph CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/orneryd/mlgraph/pkg/coarsen"
	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/exporter"
	"github.com/orneryd/mlgraph/pkg/extract"
	"github.com/orneryd/mlgraph/pkg/importer"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/operator"
	"github.com/orneryd/mlgraph/pkg/schema"
	"github.com/orneryd/mlgraph/pkg/store/badgerstore"
	"github.com/orneryd/mlgraph/pkg/tvfilter"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mlgraph",
		Short: "Multi-layer graph coarsening, filtering, and extraction",
	}

	rootCmd.AddCommand(newImportCmd(), newCoarsenCmd(), newFilterCmd(), newExtractCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mlgraph:", err)
		os.Exit(1)
	}
}

// dbPath resolves the on-disk directory for a named database under
// workdir. Multiple named graphs can share one workdir as siblings.
func dbPath(workdir, name string) string {
	if name == "" {
		name = "default"
	}
	return filepath.Join(workdir, name)
}

func openStore(path string) (*badgerstore.BadgerStore, error) {
	st, err := badgerstore.Open(badgerstore.Options{Dir: path})
	if err != nil {
		return nil, err
	}
	if err := schema.Declare(st); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newImportCmd() *cobra.Command {
	var nodesPath, edgesPath, workdir, name, schemaPath string
	var autoCreate bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Populate a new database from CSV node and edge files",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(dbPath(workdir, name))
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.Begin()
			if err != nil {
				return err
			}
			dao := mlgdao.New(sess)

			res, err := importer.Import(st, dao, nodesPath, edgesPath, importer.Options{
				AutoCreateAttrs: autoCreate,
				SchemaPath:      schemaPath,
			})
			if err != nil {
				sess.Rollback()
				return err
			}
			if err := sess.Commit(); err != nil {
				return err
			}

			fmt.Printf("imported %d nodes, %d edges (%d self-loops skipped) across %d layers\n",
				res.NodesImported, res.EdgesImported, res.SkippedSelfLoops, res.LayersCreated)
			return nil
		},
	}
	cmd.Flags().StringVar(&nodesPath, "nodes", "", "path to the nodes CSV file")
	cmd.Flags().StringVar(&edgesPath, "edges", "", "path to the edges CSV file")
	cmd.Flags().StringVar(&workdir, "workdir", "./mlgraph-data", "root directory for on-disk databases")
	cmd.Flags().StringVar(&name, "name", "default", "database name (subdirectory of workdir)")
	cmd.Flags().BoolVar(&autoCreate, "auto-create-attrs", true, "auto-create unrecognized CSV columns as indexed string attributes")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML file declaring attribute kinds for specific CSV columns")
	cmd.MarkFlagRequired("nodes")
	cmd.MarkFlagRequired("edges")
	return cmd
}

func newCoarsenCmd() *cobra.Command {
	var name, workdir, steps string
	cmd := &cobra.Command{
		Use:   "coarsen",
		Short: "Run a coarsening plan against a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(dbPath(workdir, name))
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.Begin()
			if err != nil {
				return err
			}
			dao := mlgdao.New(sess)

			b, err := coarsen.Parse(steps)
			if err != nil {
				sess.Rollback()
				return err
			}
			tops, err := b.Run(dao)
			if err != nil {
				sess.Rollback()
				return err
			}
			if err := sess.Commit(); err != nil {
				return err
			}

			fmt.Printf("coarsening produced %d new top layer(s): %v\n", len(tops), tops)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "database name")
	cmd.Flags().StringVar(&workdir, "workdir", "./mlgraph-data", "root directory for on-disk databases")
	cmd.Flags().StringVar(&steps, "steps", "", `coarsening plan, e.g. "Hs:[0.1,0.2] Xs:0.5"`)
	cmd.MarkFlagRequired("steps")
	return cmd
}

func newFilterCmd() *cobra.Command {
	var name, workdir, filterName string
	var lambda float64
	var twSize int
	var hasLambda bool
	var timeOnly bool
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Run the time-vertex filter across every layer of a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filterName != "tvm" {
				return fmt.Errorf("unknown filter %q (only \"tvm\" is supported)", filterName)
			}
			st, err := openStore(dbPath(workdir, name))
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.Begin()
			if err != nil {
				return err
			}
			dao := mlgdao.New(sess)

			f := tvfilter.New(dao)
			f.Radius = twSize
			f.TimeOnly = timeOnly
			if hasLambda {
				f.LambdaOverride = &lambda
			}

			op := operator.New(dao, f)
			if err := op.Run(nil); err != nil {
				sess.Rollback()
				return err
			}
			if err := sess.Commit(); err != nil {
				return err
			}

			fmt.Println("filter pass committed")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "database name")
	cmd.Flags().StringVar(&workdir, "workdir", "./mlgraph-data", "root directory for on-disk databases")
	cmd.Flags().StringVar(&filterName, "filter", "tvm", "filter to run (only tvm is supported)")
	cmd.Flags().Float64Var(&lambda, "lambda", 0, "override the per-CLink resistivity coefficient")
	cmd.Flags().IntVar(&twSize, "twSize", 0, "temporal window radius")
	cmd.Flags().BoolVar(&timeOnly, "time-only", false, "restrict the filter to the temporal term")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		hasLambda = cmd.Flags().Changed("lambda")
	}
	return cmd
}

func newExtractCmd() *cobra.Command {
	var name, workdir, out string
	var alpha float64
	var hasAlpha bool
	var groupAttr string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Emit the dynamic-graph JSON of a database's current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(dbPath(workdir, name))
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.Begin()
			if err != nil {
				return err
			}
			dao := mlgdao.New(sess)

			e := extract.New(dao)
			e.GroupAttr = groupAttr
			if hasAlpha {
				e.AlphaOverride = &alpha
			}

			g, err := e.Run()
			if err != nil {
				sess.Rollback()
				return err
			}
			if err := sess.Rollback(); err != nil {
				return err
			}

			layers, err := reopenLayersReadOnly(dbPath(workdir, name))
			if err != nil {
				return err
			}
			doc := exporter.Build(g, layers)

			if out == "" {
				return exporter.Write(os.Stdout, doc)
			}
			return exporter.WriteFile(out, doc)
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "database name")
	cmd.Flags().StringVar(&workdir, "workdir", "./mlgraph-data", "root directory for on-disk databases")
	cmd.Flags().StringVar(&out, "out", "", "output path (defaults to stdout)")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "override the automatic threshold")
	cmd.Flags().StringVar(&groupAttr, "group-attr", "", "node attribute partitioning the automatic threshold")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		hasAlpha = cmd.Flags().Changed("alpha")
	}
	return cmd
}

// reopenLayersReadOnly lists the layer stack in a short-lived session, so
// the extract command's export step can stamp ts_data_size/ts without
// holding the extraction session open past its rollback.
func reopenLayersReadOnly(path string) ([]entity.ID, error) {
	st, err := badgerstore.Open(badgerstore.Options{Dir: path})
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if err := schema.Declare(st); err != nil {
		return nil, err
	}
	sess, err := st.Begin()
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()
	dao := mlgdao.New(sess)
	return dao.Layers().AllLayersBottomUp()
}
