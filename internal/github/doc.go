// Package github wraps the GitHub repository contents API: reading a file
// together with its blob sha, creating or updating a file as a commit, and
// listing a directory.
//
//	gh := github.NewClient("thegaspygames", "canciones", "main")
//
//	var cat model.Catalog
//	sha, err := gh.ReadJSON(ctx, "songs.json", token, &cat)
//	switch {
//	case errors.Is(err, github.ErrNotFound):
//	    // treat as empty
//	case err != nil:
//	    return err
//	}
//
//	_, err = gh.WriteFile(ctx, "songs.json", data, token, "Update songs.json", sha)
//
// Every write is a separate commit; there is no multi-file transaction.
package github
