package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"mapsync/internal/dataset"
	"mapsync/internal/mapping"
	"mapsync/internal/match"
	"mapsync/internal/materialize"
	"mapsync/internal/metrics"
	"mapsync/internal/multitable"
	"mapsync/internal/parser"
	"mapsync/internal/probe"
	"mapsync/internal/report"
	"mapsync/internal/storage"
	"mapsync/internal/suggest"
	"mapsync/internal/validate"
)

func runProbe(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("-file F")
	file := fs.String("file", "", "CSV or XLSX file to probe")
	if err := c.parse(ctx, args); err != nil {
		return err
	}
	if err := c.require("file", *file); err != nil {
		return err
	}

	ds, err := c.readDataset(*file)
	if err != nil {
		return err
	}
	return probe.RenderSummary(c.d.Stdout, len(ds.Rows), probe.Summarize(ds.Headers, ds.Rows))
}

func runAutomap(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("-file F -group G [-name N] [-out mappings.json]")
	file := fs.String("file", "", "CSV or XLSX file whose headers are matched")
	groupID := fs.String("group", "", "data group id")
	name := fs.String("name", "", "configuration name (default: the file name)")
	out := fs.String("out", "", "write the mapping document here instead of stdout")
	if err := c.parse(ctx, args); err != nil {
		return err
	}
	if err := c.require("file", *file, "group", *groupID); err != nil {
		return err
	}

	ds, err := c.readDataset(*file)
	if err != nil {
		return err
	}
	start := c.d.Now()
	res, err := match.AutoMapGroup(c.cat, *groupID, ds.Headers)
	metrics.RecordStep("automap", err, c.d.Now().Sub(start))
	if err != nil {
		return err
	}
	g, err := mapping.NewGroup(c.cat, *groupID)
	if err != nil {
		return err
	}
	if err := g.Replace(res.Sets); err != nil {
		return err
	}

	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(*file), filepath.Ext(*file))
	}
	conf, err := mapping.FromGroup(*name, g)
	if err != nil {
		return err
	}
	c.log.Printf("stage=automap group=%s matched=%d tables=%d", *groupID, res.MatchedFields, res.TablesTouched)
	return c.writeTo(*out, func(w io.Writer) error { return mapping.WriteConfiguration(w, conf) })
}

func runSuggest(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("-file F -schema S [-mappings M] [-min-confidence X]")
	file := fs.String("file", "", "CSV or XLSX file whose headers are offered to the model")
	schemaID := fs.String("schema", "", "target schema id")
	mappingsPath := fs.String("mappings", "", "mapping document whose set for -schema is the starting point")
	minConf := fs.Float64("min-confidence", -1, "apply suggestions at or above this confidence (default MAPSYNC_AI_MIN_CONFIDENCE)")
	if err := c.parse(ctx, args); err != nil {
		return err
	}
	if err := c.require("file", *file, "schema", *schemaID); err != nil {
		return err
	}
	threshold := c.cfg.AIMinConfidence
	if *minConf >= 0 {
		if *minConf > 1 {
			return usagef("-min-confidence must be within [0, 1]")
		}
		threshold = *minConf
	}

	sc, err := c.cat.Schema(*schemaID)
	if err != nil {
		return err
	}
	ds, err := c.readDataset(*file)
	if err != nil {
		return err
	}
	set := mapping.Placeholders(sc)
	if *mappingsPath != "" {
		conf, err := readConfiguration(*mappingsPath)
		if err != nil {
			return err
		}
		set = mapping.Set{SchemaID: sc.ID, Mappings: conf.ObjectMappings[sc.ID]}
	}

	start := c.d.Now()
	suggestions, _ := c.d.NewSuggester(c.cfg, c.log).Suggest(ctx, ds.Headers, sc)
	metrics.RecordStep("suggest", nil, c.d.Now().Sub(start))

	res := suggest.Merge(set, suggestions, sc, threshold)
	c.log.Printf("stage=suggest schema=%s suggestions=%d applied=%d pending=%d", sc.ID, len(suggestions), res.Applied, len(res.Pending))

	enc := json.NewEncoder(c.d.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runPreview(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("-file F -schema S -mappings M [-limit 8]")
	file := fs.String("file", "", "CSV or XLSX source file")
	schemaID := fs.String("schema", "", "target schema id")
	mappingsPath := fs.String("mappings", "", "mapping document (as written by automap)")
	limit := fs.Int("limit", materialize.DefaultPreviewLimit, "number of source rows")
	if err := c.parse(ctx, args); err != nil {
		return err
	}
	if err := c.require("file", *file, "schema", *schemaID, "mappings", *mappingsPath); err != nil {
		return err
	}
	if *limit <= 0 {
		return usagef("-limit must be > 0")
	}

	sc, err := c.cat.Schema(*schemaID)
	if err != nil {
		return err
	}
	ds, err := c.readDataset(*file)
	if err != nil {
		return err
	}
	conf, err := readConfiguration(*mappingsPath)
	if err != nil {
		return err
	}
	set := mapping.Set{SchemaID: sc.ID, Mappings: conf.ObjectMappings[sc.ID]}

	issues := validate.CheckSet(sc, set, ds)
	for _, iss := range issues {
		c.log.Printf("stage=preview level=warn schema=%s %s", sc.ID, iss)
	}
	if validate.HasErrors(issues) {
		return fmt.Errorf("mapping set for %s has errors", sc.ID)
	}

	opt := materialize.PreviewOptions()
	opt.Limit = *limit
	return materialize.Preview(c.d.Stdout, sc, materialize.Rows(sc, set, ds.Rows, opt))
}

func runSave(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("-name N -group G -mappings M [-id ID]")
	name := fs.String("name", "", "configuration name (default: the document's name)")
	groupID := fs.String("group", "", "data group id (default: the document's group)")
	mappingsPath := fs.String("mappings", "", "mapping document to save")
	id := fs.String("id", "", "update this registry id")
	if err := c.parse(ctx, args); err != nil {
		return err
	}
	if err := c.require("mappings", *mappingsPath); err != nil {
		return err
	}

	conf, err := readConfiguration(*mappingsPath)
	if err != nil {
		return err
	}
	if *name != "" {
		conf.Name = *name
	}
	if *groupID != "" {
		conf.GroupID = *groupID
	}
	if *id != "" {
		conf.ID = *id
	}
	conf, err = conf.Normalized(c.cat)
	if err != nil {
		return err
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	saved, err := st.SaveConfiguration(ctx, conf)
	if err != nil {
		return err
	}
	c.log.Printf("stage=registry_save id=%s name=%q group=%s version=%d mapped=%d",
		saved.ID, saved.Name, saved.GroupID, saved.Version, saved.MappedCount())
	_, err = fmt.Fprintf(c.d.Stdout, "saved id=%s name=%q group=%s version=%d\n", saved.ID, saved.Name, saved.GroupID, saved.Version)
	return err
}

func runList(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("[-group G]")
	groupID := fs.String("group", "", "only registries of this data group")
	if err := c.parse(ctx, args); err != nil {
		return err
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	configs, err := st.ListConfigurations(ctx, *groupID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.d.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGROUP\tVERSION\tMAPPED\tUPDATED")
	for _, conf := range configs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			conf.ID, conf.Name, conf.GroupID, conf.Version, conf.MappedCount(), conf.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func runDelete(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("-id ID")
	id := fs.String("id", "", "registry id")
	if err := c.parse(ctx, args); err != nil {
		return err
	}
	if err := c.require("id", *id); err != nil {
		return err
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	deleted, err := st.DeleteConfiguration(ctx, *id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, *id)
	}
	c.log.Printf("stage=registry_delete id=%s", *id)
	_, err = fmt.Fprintf(c.d.Stdout, "deleted id=%s\n", *id)
	return err
}

func runExport(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("-id ID [-out file.csv]")
	id := fs.String("id", "", "registry id")
	out := fs.String("out", "", "write the report here instead of stdout")
	if err := c.parse(ctx, args); err != nil {
		return err
	}
	if err := c.require("id", *id); err != nil {
		return err
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	conf, err := st.GetConfiguration(ctx, *id)
	if err != nil {
		return err
	}
	return c.writeTo(*out, func(w io.Writer) error { return report.Write(w, conf, c.cat, c.d.Now()) })
}

func runSync(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("-file F -id ID [-create-tables]")
	file := fs.String("file", "", "CSV or XLSX source file")
	id := fs.String("id", "", "registry id")
	createTables := fs.Bool("create-tables", false, "create missing target tables (env MAPSYNC_CREATE_TABLES)")
	if err := c.parse(ctx, args); err != nil {
		return err
	}
	if err := c.require("file", *file, "id", *id); err != nil {
		return err
	}

	ds, err := c.readDataset(*file)
	if err != nil {
		return err
	}
	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	pub, err := c.d.NewPublisher(c.cfg, c.log)
	if err != nil {
		c.log.Printf("stage=broker level=warn err=%q; sync results are not published", err.Error())
		pub = nil
	}
	if pub != nil {
		defer pub.Close()
	}

	runner := &multitable.Runner{
		Catalog:  c.cat,
		Registry: st,
		Engine: &multitable.Engine{
			Loader:       st,
			Publisher:    pub,
			TopicPrefix:  c.cfg.MQTTTopicPrefix,
			CreateTables: *createTables || c.cfg.CreateTables,
			Logger:       c.log,
		},
	}
	res, err := runner.RunSaved(ctx, *id, "", ds.Rows)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.d.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHEMA\tTABLE\tSTATUS\tROWS\tMESSAGE")
	for _, t := range res.Tables {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.Schema, t.Table, t.Status, t.RowsAffected, t.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.d.Stdout, "succeeded=%d failed=%d skipped=%d\n", res.Succeeded, res.Failed, res.Skipped)
	if !res.OK() {
		return fmt.Errorf("%d of %d tables failed", res.Failed, len(res.Tables))
	}
	return nil
}

// readDataset parses path and infers its column types.
func (c *cli) readDataset(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := filepath.Base(path)
	start := c.d.Now()
	tbl, err := parser.ParseFile(name, f)
	metrics.RecordStep("parse", err, c.d.Now().Sub(start))
	if err != nil {
		return nil, err
	}
	ds := dataset.New(tbl, name)
	c.log.Printf("stage=dataset file=%q rows=%d columns=%d", name, len(ds.Rows), len(ds.Headers))
	return ds, nil
}

func readConfiguration(path string) (mapping.SavedConfiguration, error) {
	f, err := os.Open(path)
	if err != nil {
		return mapping.SavedConfiguration{}, err
	}
	defer f.Close()
	return mapping.ReadConfiguration(f)
}

// writeTo runs write against path, or stdout when path is empty.
func (c *cli) writeTo(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(c.d.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	c.log.Printf("stage=write path=%s", path)
	return nil
}
