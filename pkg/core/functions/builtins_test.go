// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package functions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadagpt/conversation-gateway/pkg/catalog"
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
	"github.com/tadagpt/conversation-gateway/pkg/core/state"
	"github.com/tadagpt/conversation-gateway/pkg/docstore/memory"
)

func productNames(products []catalog.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Nome
	}
	return out
}

func newBuiltins(vision api.VisionClient) *Builtins {
	return &Builtins{Catalog: catalog.Demo(), Vision: vision}
}

func TestSearchProducts_CategoryAndPrice(t *testing.T) {
	out, err := newBuiltins(nil).SearchProducts(context.Background(), map[string]any{
		"categoria": "eletrônicos",
		"preco_max": 300.0,
	})
	require.NoError(t, err)

	res := out.(*ProductSearchResult)
	assert.Contains(t, productNames(res.Produtos), "Fone Bluetooth")
	assert.NotContains(t, productNames(res.Produtos), "Smartphone XYZ")
	assert.Equal(t, len(res.Produtos), res.Total)
	assert.Equal(t, ProductSearchFilters{Categoria: "eletrônicos", PrecoMax: 300}, res.FiltrosAplicados)
}

func TestSearchProducts_NoMatchReturnsEmptyList(t *testing.T) {
	out, err := newBuiltins(nil).SearchProducts(context.Background(), map[string]any{
		"palavra_chave": "geladeira",
	})
	require.NoError(t, err)

	res := out.(*ProductSearchResult)
	assert.NotNil(t, res.Produtos)
	assert.Empty(t, res.Produtos)
	assert.Zero(t, res.Total)
}

func TestCheckStock(t *testing.T) {
	b := newBuiltins(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
		want any
	}{
		{
			name: "numeric id",
			args: map[string]any{"produto_id": 1.0},
			want: &StockResult{ProdutoID: 1, ProdutoNome: "Smartphone XYZ", Disponivel: true, Quantidade: 15, Reservados: 2, DisponivelParaVenda: 13},
		},
		{
			name: "numeric string id",
			args: map[string]any{"produto_id": "4"},
			want: &StockResult{ProdutoID: 4, ProdutoNome: "Tênis Sport", Disponivel: true, Quantidade: 25, Reservados: 5, DisponivelParaVenda: 20},
		},
		{
			name: "name lookup ignores case",
			args: map[string]any{"produto_nome": "NOTEBOOK abc"},
			want: &StockResult{ProdutoID: 2, ProdutoNome: "Notebook ABC", Disponivel: true, Quantidade: 8, Reservados: 1, DisponivelParaVenda: 7},
		},
		{
			name: "unknown id",
			args: map[string]any{"produto_id": 999.0},
			want: ErrorResult{Erro: "Product not found"},
		},
		{
			name: "unknown name",
			args: map[string]any{"produto_nome": "geladeira"},
			want: ErrorResult{Erro: "Product not found"},
		},
		{
			name: "no identifier",
			args: map[string]any{},
			want: ErrorResult{Erro: "Product not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.CheckStock(ctx, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzeImage_FindsSimilarProducts(t *testing.T) {
	vision := api.NewMockClient()
	vision.VisionReply = "Aqui está:\n```json\n{\"categoria\": \"Calçados\", \"caracteristicas\": [\"azul\"], \"palavras_chave\": [\"tênis\"], \"descricao\": \"Tênis de corrida\"}\n```"

	b := newBuiltins(vision)
	b.VisionModel = "gpt-4o-mini"
	out, err := b.AnalyzeImage(context.Background(), map[string]any{"imagem_url": "https://img.example.com/t.jpg"})
	require.NoError(t, err)

	res := out.(*ImageAnalysisResult)
	assert.Equal(t, "https://img.example.com/t.jpg", res.Analise["imagem_analisada"])
	assert.Equal(t, "Calçados", res.Analise["categoria"])
	assert.Equal(t, []string{"Tênis Sport"}, productNames(res.ProdutosSimilares))
	assert.Equal(t, 1, res.TotalSimilares)
	assert.Equal(t, similarFoundHint, res.Sugestao)

	reqs := vision.VisionRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gpt-4o-mini", reqs[0].Model)
	assert.Equal(t, 500, reqs[0].MaxTokens)
}

func TestAnalyzeImage_CascadesToKeyword(t *testing.T) {
	vision := api.NewMockClient()
	vision.VisionReply = `{"categoria": "acessórios", "categoria_sugerida": "joias", "palavras_chave": ["bluetooth"]}`

	out, err := newBuiltins(vision).AnalyzeImage(context.Background(), map[string]any{"imagem_url": "u"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fone Bluetooth"}, productNames(out.(*ImageAnalysisResult).ProdutosSimilares))
}

func TestAnalyzeImage_Fallbacks(t *testing.T) {
	t.Run("no json in reply", func(t *testing.T) {
		vision := api.NewMockClient()
		vision.VisionReply = "Parece um produto qualquer"

		out, err := newBuiltins(vision).AnalyzeImage(context.Background(), map[string]any{
			"imagem_url":       "u",
			"buscar_similares": false,
		})
		require.NoError(t, err)

		res := out.(*ImageAnalysisResult)
		assert.Equal(t, "produto", res.Analise["categoria"])
		assert.Equal(t, []any{"analisado por IA"}, res.Analise["caracteristicas"])
		assert.Equal(t, "Parece um produto qualquer", res.Analise["descricao"])
		assert.Empty(t, res.ProdutosSimilares)
		assert.Equal(t, similarNotFoundHint, res.Sugestao)
	})

	t.Run("malformed json", func(t *testing.T) {
		vision := api.NewMockClient()
		vision.VisionReply = `{categoria: roupas}`

		out, err := newBuiltins(vision).AnalyzeImage(context.Background(), map[string]any{"imagem_url": "u"})
		require.NoError(t, err)

		res := out.(*ImageAnalysisResult)
		assert.Equal(t, []any{"produto identificado"}, res.Analise["caracteristicas"])
		assert.Equal(t, `{categoria: roupas}`, res.Analise["descricao"])
	})

	t.Run("vision failure", func(t *testing.T) {
		vision := api.NewMockClient()
		vision.VisionErr = errors.New("rate limited")

		out, err := newBuiltins(vision).AnalyzeImage(context.Background(), map[string]any{"imagem_url": "u"})
		require.NoError(t, err)
		assert.Equal(t, &ImageAnalysisFailure{
			Erro:     visionFailedMessage,
			Detalhes: "rate limited",
			Sugestao: visionFailedHint,
		}, out)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := newBuiltins(api.NewMockClient()).AnalyzeImage(context.Background(), map[string]any{})
		assert.True(t, apierror.Is(err, apierror.KindValidation))
	})
}

func TestExecutor_Dispatch(t *testing.T) {
	ctx := context.Background()
	e := NewExecutor(nil, nil)
	newBuiltins(nil).Register(e)
	assert.Equal(t, []string{AnalyzeImageFunction, SearchProductsFunction, CheckStockFunction}, e.Names())

	out, err := e.Execute(ctx, &state.CustomFunction{Name: CheckStockFunction}, map[string]any{"produto_id": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 0, out.(*StockResult).DisponivelParaVenda)

	_, err = e.Execute(ctx, &state.CustomFunction{Name: "calcular_frete"}, nil)
	assert.EqualError(t, err, "function calcular_frete is not implemented")
}

func TestRegistry_Lookup(t *testing.T) {
	ctx := context.Background()
	repo := state.NewRepository(memory.New())
	require.NoError(t, repo.PutAssistant(ctx, "c1", &state.ClientAssistant{
		ID:              "a1",
		Status:          state.AssistantActive,
		CustomFunctions: []state.CustomFunction{{Name: SearchProductsFunction}},
	}))

	reg := NewRegistry(repo)

	fn, err := reg.Lookup(ctx, "c1", "a1", SearchProductsFunction)
	require.NoError(t, err)
	assert.Equal(t, SearchProductsFunction, fn.Name)

	_, err = reg.Lookup(ctx, "c1", "a1", "calcular_frete")
	assert.True(t, apierror.Is(err, apierror.KindNotFound))

	_, err = reg.Lookup(ctx, "c1", "a2", SearchProductsFunction)
	assert.True(t, apierror.Is(err, apierror.KindNotFound))
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseArguments(`{"categoria":"roupas"}`)
	require.NoError(t, err)
	assert.Equal(t, "roupas", args["categoria"])

	_, err = ParseArguments(`{"categoria":`)
	assert.Error(t, err)
}
