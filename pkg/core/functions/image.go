// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package functions

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tadagpt/conversation-gateway/pkg/catalog"
	"github.com/tadagpt/conversation-gateway/pkg/core/api"
	"github.com/tadagpt/conversation-gateway/pkg/core/apierror"
)

const (
	defaultVisionModel = "gpt-4o"
	visionMaxTokens    = 500

	similarFoundHint    = "Encontrei alguns produtos similares para você!"
	similarNotFoundHint = "Não encontrei produtos similares no momento, mas posso ajudar você a encontrar algo parecido."
	visionFailedMessage = "Não foi possível analisar a imagem no momento"
	visionFailedHint    = "Tente descrever o produto que você procura ou envie outra imagem"
)

const visionPrompt = `Analise esta imagem de produto e me diga:
1. Que tipo de produto é (categoria)
2. Características principais (cor, formato, estilo)
3. Palavras-chave para busca
4. Categoria sugerida (eletrônicos, roupas, calçados, decoração, etc.)

Responda em formato JSON com as chaves: categoria, caracteristicas, palavras_chave, descricao, categoria_sugerida`

// jsonObject matches from the first '{' to the last '}'.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type imageArgs struct {
	ImagemURL       string `json:"imagem_url"`
	BuscarSimilares *bool  `json:"buscar_similares"`
}

// ImageAnalysisResult is the output of analisar_imagem_produto.
type ImageAnalysisResult struct {
	Analise           map[string]any    `json:"analise"`
	ProdutosSimilares []catalog.Product `json:"produtos_similares"`
	TotalSimilares    int               `json:"total_similares"`
	Sugestao          string            `json:"sugestao"`
}

// ImageAnalysisFailure is returned when the vision model cannot be reached.
type ImageAnalysisFailure struct {
	Erro     string `json:"erro"`
	Detalhes string `json:"detalhes"`
	Sugestao string `json:"sugestao"`
}

// AnalyzeImage describes the product in imagem_url with a vision model and,
// unless buscar_similares is false, looks up similar available products.
func (b *Builtins) AnalyzeImage(ctx context.Context, args map[string]any) (any, error) {
	var in imageArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ImagemURL) == "" {
		return nil, apierror.Validation("imagem_url is required")
	}
	if b.Vision == nil {
		return nil, apierror.Validation("image analysis is not configured")
	}

	model := b.VisionModel
	if model == "" {
		model = defaultVisionModel
	}
	content, err := b.Vision.DescribeImage(ctx, api.VisionRequest{
		Model:     model,
		Prompt:    visionPrompt,
		ImageURL:  in.ImagemURL,
		MaxTokens: visionMaxTokens,
	})
	if err != nil {
		return &ImageAnalysisFailure{
			Erro:     visionFailedMessage,
			Detalhes: err.Error(),
			Sugestao: visionFailedHint,
		}, nil
	}

	analysis := parseAnalysis(content)

	similar := []catalog.Product{}
	if in.BuscarSimilares == nil || *in.BuscarSimilares {
		similar = b.similarProducts(ctx, analysis)
	}

	result := &ImageAnalysisResult{
		Analise:           map[string]any{"imagem_analisada": in.ImagemURL},
		ProdutosSimilares: similar,
		TotalSimilares:    len(similar),
		Sugestao:          similarNotFoundHint,
	}
	for k, v := range analysis {
		result.Analise[k] = v
	}
	if len(similar) > 0 {
		result.Sugestao = similarFoundHint
	}
	return result, nil
}

// parseAnalysis extracts the JSON object from the model reply, falling back
// to a generic description when there is none or it does not parse.
func parseAnalysis(content string) map[string]any {
	match := jsonObject.FindString(content)
	if match == "" {
		return map[string]any{
			"categoria":       "produto",
			"caracteristicas": []any{"analisado por IA"},
			"palavras_chave":  []any{"produto", "item"},
			"descricao":       content,
		}
	}

	var analysis map[string]any
	if err := json.Unmarshal([]byte(match), &analysis); err != nil || analysis == nil {
		desc := content
		if desc == "" {
			desc = "Produto analisado"
		}
		return map[string]any{
			"categoria":       "produto",
			"caracteristicas": []any{"produto identificado"},
			"palavras_chave":  []any{"item"},
			"descricao":       desc,
		}
	}
	return analysis
}

// similarProducts searches available products by categoria, then
// categoria_sugerida, then the first palavra_chave, stopping at the first
// search that finds anything. Search failures yield no products.
func (b *Builtins) similarProducts(ctx context.Context, analysis map[string]any) []catalog.Product {
	categoria, _ := analysis["categoria"].(string)
	if categoria == "" {
		return []catalog.Product{}
	}

	available := true
	attempts := []ProductSearchFilters{
		{Categoria: strings.ToLower(categoria), Disponivel: &available},
	}
	if suggested, _ := analysis["categoria_sugerida"].(string); suggested != "" {
		attempts = append(attempts, ProductSearchFilters{Categoria: strings.ToLower(suggested), Disponivel: &available})
	}
	if keywords, ok := analysis["palavras_chave"].([]any); ok && len(keywords) > 0 {
		if kw, _ := keywords[0].(string); kw != "" {
			attempts = append(attempts, ProductSearchFilters{PalavraChave: kw, Disponivel: &available})
		}
	}

	for _, filters := range attempts {
		res, err := b.search(ctx, filters)
		if err != nil {
			return []catalog.Product{}
		}
		if res.Total > 0 {
			return res.Produtos
		}
	}
	return []catalog.Product{}
}
