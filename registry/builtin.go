package registry

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/mhclab/epibind/data"
	"github.com/mhclab/epibind/model"
	"github.com/mhclab/epibind/training"
)

func init() {
	RegisterModel("cat_mlp", buildCatMLP)
	RegisterModel("bilinear", buildBilinear)
	RegisterEncoder("plm_plm", buildPairEncoder)
}

func intArg(args map[string]interface{}, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, errors.Errorf("missing required arg %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Errorf("arg %q must be an integer, got %T", key, v)
	}
}

func floatArg(args map[string]interface{}, key string, def float64) (float64, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, errors.Errorf("arg %q must be a number, got %T", key, v)
	}
}

func stringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", errors.Errorf("missing required arg %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("arg %q must be a string, got %T", key, v)
	}
	return s, nil
}

func buildCatMLP(args map[string]interface{}, rng *rand.Rand) (training.Model, error) {
	epiDim, err := intArg(args, "epi_dim")
	if err != nil {
		return nil, err
	}
	hlaDim, err := intArg(args, "hla_dim")
	if err != nil {
		return nil, err
	}
	hiddenDim, err := intArg(args, "hidden_dim")
	if err != nil {
		return nil, err
	}
	dropout, err := floatArg(args, "dropout", 0)
	if err != nil {
		return nil, err
	}
	l2, err := floatArg(args, "l2", 0)
	if err != nil {
		return nil, err
	}
	return model.NewCatMLP(epiDim, hlaDim, hiddenDim, dropout, l2, rng)
}

func buildBilinear(args map[string]interface{}, rng *rand.Rand) (training.Model, error) {
	epiDim, err := intArg(args, "epi_dim")
	if err != nil {
		return nil, err
	}
	hlaDim, err := intArg(args, "hla_dim")
	if err != nil {
		return nil, err
	}
	return model.NewBilinearScorer(epiDim, hlaDim, rng)
}

func buildPairEncoder(provider *data.Provider, alleles *data.AlleleTable, args map[string]interface{}) (training.Dataset, error) {
	epiPath, err := stringArg(args, "epi_emb_path")
	if err != nil {
		return nil, err
	}
	hlaPath, err := stringArg(args, "hla_emb_path")
	if err != nil {
		return nil, err
	}

	epiStore, err := data.NewStore(epiPath)
	if err != nil {
		return nil, err
	}
	hlaStore, err := data.NewStore(hlaPath)
	if err != nil {
		return nil, err
	}
	return data.NewPairEncoder(provider, alleles, epiStore, hlaStore)
}
