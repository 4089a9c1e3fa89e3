// Command csmfit fits a cross-sectional Markov model to a CSV panel of
// observed category probabilities and prints the estimated transition matrix
// and initial distribution.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/rilwen/csm/csm"
)

func main() {
	csvPath := flag.String("csv", "", "path to a CSV file: first column is time, remaining columns are category probabilities")
	dim := flag.Uint("d", 0, "number of observed categories (0 = infer from CSV column count)")
	memory := flag.Uint("m", 0, "memory length M")
	tauNN := flag.Float64("tau-nn", 1.0, "upper bound on non-neighbour transition probabilities")
	lambda := flag.Float64("lambda", 0, "regularisation strength")
	piInit := flag.String("pi-init", "MAX_ENTROPY", "initial Pi guess method")
	q0Init := flag.String("q0-init", "MAX_ENTROPY", "initial q0 guess method")
	global := flag.Bool("global", false, "run bounded multi-start global search instead of a single local fit")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "csmfit: -csv is required")
		os.Exit(2)
	}

	data, err := loadObservedData(*csvPath, int(*dim))
	if err != nil {
		panic(err)
	}

	params := csm.CSMParams{
		M:            *memory,
		TauNN:        *tauNN,
		D:            uint(data.Dim()),
		Lambda:       *lambda,
		GlobalSearch: *global,
		Logger:       csm.NewStdLogger(csm.LevelInfo),
	}
	if *lambda > 0 {
		params.Regulariser = csm.EntropyRegulariser[csm.AD0]{WeightPi: -1, WeightQ0: -1}
		params.Regulariser1 = csm.EntropyRegulariser[csm.AD1]{WeightPi: -1, WeightQ0: -1}
	}

	model, err := csm.NewCSM(data, params)
	if err != nil {
		panic(err)
	}

	piMethod, err := csm.ParsePiInitMethod(*piInit)
	if err != nil {
		panic(err)
	}
	q0Method, err := csm.ParseQ0InitMethod(*q0Init)
	if err != nil {
		panic(err)
	}

	pi0, err := model.CalcInitialGuessPi(piMethod)
	if err != nil {
		panic(err)
	}
	q00, err := model.CalcInitialGuessQ0(q0Method)
	if err != nil {
		panic(err)
	}
	result, err := model.Estimate(pi0, q00, os.Stdout)
	if err != nil {
		panic(err)
	}

	fmt.Println("fitted Pi:")
	printMatrix(result.Pi)
	fmt.Println("fitted q0:")
	fmt.Println(result.Q0)
	fmt.Printf("loss: %g, status: %s\n", result.Loss, result.Status)
}

func printMatrix(m *mat.Dense) {
	rows, cols := m.Dims()
	for k := 0; k < rows; k++ {
		for t := 0; t < cols; t++ {
			fmt.Printf("%10.6f ", m.At(k, t))
		}
		fmt.Println()
	}
}

// loadObservedData reads a CSV with a time column followed by one
// probability column per category into an ObservedData cross-section, in the
// flat CSV-to-matrix idiom of the original VAR loader this command was
// adapted from.
func loadObservedData(path string, dim int) (*csm.ObservedData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("csmfit: CSV must have a header and at least one data row")
	}
	header := rows[0]
	if dim == 0 {
		dim = len(header) - 1
	}

	times := make([]float64, 0, len(rows)-1)
	surveys := make([]float64, 0, len(rows)-1)
	cols := make([][]float64, 0, len(rows)-1)
	for _, row := range rows[1:] {
		tm, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("csmfit: bad time value %q: %w", row[0], err)
		}
		col := make([]float64, dim)
		for k := 0; k < dim; k++ {
			v, err := strconv.ParseFloat(row[k+1], 64)
			if err != nil {
				return nil, fmt.Errorf("csmfit: bad probability value %q: %w", row[k+1], err)
			}
			col[k] = v
		}
		times = append(times, tm)
		surveys = append(surveys, 1.0)
		cols = append(cols, col)
	}

	probs := mat.NewDense(dim, len(cols), nil)
	for t, col := range cols {
		for k, v := range col {
			probs.Set(k, t, v)
		}
	}

	return &csm.ObservedData{Probs: probs, NbrSurveys: surveys, Times: times}, nil
}
