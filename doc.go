// Package taxdex provides a Go client for searching taxon, assembly and
// sample attributes stored in Elasticsearch.
//
// Queries use the taxdex query language: attribute comparisons joined with
// AND, taxonomy predicates and bare field names.
//
//	client, _ := taxdex.New(ctx, taxdex.WithElasticsearch("http://localhost:9200"))
//	defer client.Close()
//
//	res, _ := client.Search(ctx, "tax_tree(Mammalia) AND genome_size>1000000000",
//	    &taxdex.SearchOptions{Fields: []string{"genome_size"}, Size: 50})
//	for _, r := range res.Records {
//	    fmt.Println(r.Fields["scientific_name"], r.Attributes["genome_size"].Value)
//	}
//
// Searches asking for more records than the scroll threshold are read in
// batches. Name them with SearchOptions.ProgressID and poll Client.Progress.
package taxdex
