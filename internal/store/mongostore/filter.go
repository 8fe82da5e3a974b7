package mongostore

import (
	"github.com/shopdesk/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var productSortFields = map[string]bool{
	"name":           true,
	"price":          true,
	"createdAt":      true,
	"rating.average": true,
	"views":          true,
}

// productFilter builds the find filter of a product list query.
func productFilter(q types.ProductQuery) bson.M {
	filter := bson.M{}
	if q.IsActive != nil {
		filter["isActive"] = *q.IsActive
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Search != "" {
		filter["$text"] = bson.M{"$search": q.Search}
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}
	if q.Featured != nil {
		filter["featured"] = *q.Featured
	}
	return filter
}

// productSort builds the sort document, breaking ties by id.
func productSort(q types.ProductQuery) bson.D {
	field := q.SortBy
	if !productSortFields[field] {
		field = "createdAt"
	}
	direction := -1
	if q.SortOrder == types.SortAsc {
		direction = 1
	}
	return bson.D{{Key: field, Value: direction}, {Key: "_id", Value: 1}}
}
