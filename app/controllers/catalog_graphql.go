package controllers

import (
	"errors"
	"fmt"
	"strconv"

	gql "github.com/graphql-go/graphql"

	"github.com/onyxia-store/onyxia/app/repositories"
	"github.com/onyxia-store/onyxia/app/services"
	"github.com/onyxia-store/onyxia/pkg/graphql"
)

// Field names follow the json tags of models.Product, which the default
// resolver reads.
var productType = gql.NewObject(gql.ObjectConfig{
	Name: "Product",
	Fields: gql.Fields{
		"id":            &gql.Field{Type: gql.NewNonNull(gql.ID)},
		"name":          &gql.Field{Type: gql.NewNonNull(gql.String)},
		"description":   &gql.Field{Type: gql.String},
		"price":         &gql.Field{Type: gql.NewNonNull(gql.Float)},
		"image":         &gql.Field{Type: gql.String},
		"display_home":  &gql.Field{Type: gql.Boolean},
		"home_position": &gql.Field{Type: gql.Int},
	},
})

// NewCatalogSchema exposes the read side of the catalogue: products,
// product(id) and homeProducts. An unknown id resolves to null.
func NewCatalogSchema(svc *services.ProductService) (gql.Schema, error) {
	query := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"products": &gql.Field{
				Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(productType))),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return svc.List(p.Context)
				},
			},
			"homeProducts": &gql.Field{
				Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(productType))),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return svc.Home(p.Context)
				},
			},
			"product": &gql.Field{
				Type: productType,
				Args: gql.FieldConfigArgument{
					"id": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					raw, _ := p.Args["id"].(string)
					id, err := strconv.ParseUint(raw, 10, 64)
					if err != nil || id == 0 {
						return nil, fmt.Errorf("invalid product id %q", raw)
					}
					product, err := svc.Find(p.Context, uint(id))
					if errors.Is(err, repositories.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return &product, nil
				},
			},
		},
	})
	return graphql.NewSchema(query)
}
