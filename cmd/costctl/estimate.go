package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specsharp/internal/engine"
	"specsharp/internal/taxonomy"
)

var (
	estimateType      string
	estimateSubtype   string
	estimateSF        float64
	estimateLocation  string
	estimateClass     string
	estimateFloors    int
	estimateOwnership string
	estimateFinish    string
	estimateFeatures  []string
	estimateJSON      bool
	estimateTrace     bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate [description]",
	Short: "Run one cost and feasibility estimate",
	Long: `Classifies the description (or the explicit --type/--subtype), prices the
project and prints the feasibility decision.

Example:
  costctl estimate "New 4,200 sf sports bar in Nashville" --sf 4200 --location Nashville`,
	RunE: runEstimate,
}

func init() {
	f := estimateCmd.Flags()
	f.StringVar(&estimateType, "type", "", "building type")
	f.StringVar(&estimateSubtype, "subtype", "", "building subtype")
	f.Float64Var(&estimateSF, "sf", 0, "gross square footage")
	f.StringVar(&estimateLocation, "location", "", "project city")
	f.StringVar(&estimateClass, "class", "", "ground_up, renovation, addition or tenant_improvement")
	f.IntVar(&estimateFloors, "floors", 0, "floor count (0 reads it from the description)")
	f.StringVar(&estimateOwnership, "ownership", "", "for_profit, nonprofit or government (default: first one the profile finances)")
	f.StringVar(&estimateFinish, "finish", "", "standard, premium or luxury")
	f.StringSliceVar(&estimateFeatures, "feature", nil, "special feature id (repeatable)")
	f.BoolVar(&estimateJSON, "json", false, "print the full result as JSON")
	f.BoolVar(&estimateTrace, "trace", false, "print the calculation trace")
}

func estimateRequest(args []string) engine.Request {
	return engine.Request{
		Description:     strings.Join(args, " "),
		BuildingType:    estimateType,
		Subtype:         estimateSubtype,
		SquareFootage:   estimateSF,
		Location:        estimateLocation,
		ProjectClass:    estimateClass,
		Floors:          estimateFloors,
		OwnershipType:   estimateOwnership,
		FinishLevel:     estimateFinish,
		SpecialFeatures: estimateFeatures,
	}
}

func runEstimate(cmd *cobra.Command, args []string) error {
	reg, err := taxonomy.Open(cfg.Taxonomy.Path)
	if err != nil {
		return err
	}
	eng, err := engine.New(reg, cfg.Engine)
	if err != nil {
		return err
	}

	req := estimateRequest(args)
	res, err := eng.Calculate(req)
	if err != nil {
		return err
	}
	res = res.Rounded()
	logger.Debug("estimate complete",
		zap.String("profile", string(res.ProjectInfo.BuildingType)+"/"+res.ProjectInfo.Subtype),
		zap.Int("taxonomy_version", res.ProjectInfo.TaxonomyVersion),
	)

	out := cmd.OutOrStdout()
	if estimateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printSummary(out, res)
	if estimateTrace {
		printTrace(out, res)
	}
	return nil
}

func printSummary(out io.Writer, res *engine.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	p := res.ProjectInfo
	fmt.Fprintf(w, "Profile\t%s (%s/%s)\n", p.DisplayName, p.BuildingType, p.Subtype)
	fmt.Fprintf(w, "Location\t%s\n", p.Location)
	fmt.Fprintf(w, "Square footage\t%.0f\n", p.SquareFootage)
	fmt.Fprintf(w, "Construction\t$%.2f\n", res.Totals.ConstructionTotal)
	fmt.Fprintf(w, "Equipment\t$%.2f\n", res.Totals.EquipmentTotal)
	fmt.Fprintf(w, "Special features\t$%.2f\n", res.Totals.SpecialFeaturesTotal)
	fmt.Fprintf(w, "Soft costs\t$%.2f\n", res.Totals.SoftCostsTotal)
	fmt.Fprintf(w, "Total project cost\t$%.2f\n", res.Totals.TotalProjectCost)
	fmt.Fprintf(w, "Cost per sf\t$%.2f\n", res.Totals.CostPerSF)
	fmt.Fprintf(w, "NOI\t$%.2f\n", res.RevenueAnalysis.NOI)
	fmt.Fprintf(w, "ROI\t%.2f%%\n", res.ReturnMetrics.ROI*100)
	if d := res.ReturnMetrics.DSCR; d != nil {
		fmt.Fprintf(w, "DSCR\t%.2f\n", *d)
	}
	fmt.Fprintf(w, "Decision\t%s (%s)\n", res.DealShield.Status, res.DealShield.ReasonCode)
	if res.DealShield.Caveat != "" {
		fmt.Fprintf(w, "Caveat\t%s\n", res.DealShield.Caveat)
	}
}

func printTrace(out io.Writer, res *engine.Result) {
	fmt.Fprintln(out)
	for i, step := range res.Trace {
		payload, _ := json.Marshal(step.Payload)
		fmt.Fprintf(out, "%2d. %s %s\n", i+1, step.Name, payload)
	}
}
