package normalize

import "github.com/tidwall/gjson"

// ResolveCategoryID extracts the category identifier of a question record,
// whether the category is inlined as an object, an array of ids or a flat
// field under one of several aliases. It returns "" for uncategorized
// questions; "" never matches a category filter.
func ResolveCategoryID(q gjson.Result) string {
	if c := q.Get("category"); c.IsObject() {
		if id := firstText(c, "id", "_id", "category_id", "categoryId", "cat_id"); id != "" {
			return id
		}
	}
	if ids := q.Get("category_id"); ids.IsArray() {
		if arr := ids.Array(); len(arr) > 0 {
			if id := scalarText(arr[0]); id != "" {
				return id
			}
		}
	}
	return firstText(q, "category_id", "category", "categoryId", "cat_id", "catId")
}
